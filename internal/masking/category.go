package masking

// Category classifies a span of sensitive data.
type Category string

const (
	CategoryCreditCard Category = "credit_card"
	CategoryNationalID Category = "national_id"
	CategoryPhone      Category = "phone"
	CategoryAccount    Category = "account"
	CategoryEmail      Category = "email"
	CategoryAddress    Category = "address"
	CategoryName       Category = "name"
)

// AllCategories is the default detection set when the caller selects none.
func AllCategories() []Category {
	return []Category{
		CategoryCreditCard,
		CategoryNationalID,
		CategoryPhone,
		CategoryAccount,
		CategoryEmail,
		CategoryAddress,
	}
}

var categoryLabels = map[Category]string{
	CategoryCreditCard: "信用卡",
	CategoryNationalID: "身分證",
	CategoryPhone:      "電話",
	CategoryAccount:    "帳號",
	CategoryEmail:      "Email",
	CategoryAddress:    "地址",
	CategoryName:       "姓名",
}

// Label returns the display label used in detection statistics.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return "個資"
}
