package service

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/auth"
	"github.com/repairflow/repairflow/internal/domain"
)

type fakeLineCustomerRepo struct {
	customers map[string]*domain.LineCustomer
}

func (r *fakeLineCustomerRepo) Upsert(ctx context.Context, customer *domain.LineCustomer) error {
	if r.customers == nil {
		r.customers = map[string]*domain.LineCustomer{}
	}
	r.customers[customer.LineUserID] = customer
	return nil
}

func (r *fakeLineCustomerRepo) GetByLineUserID(ctx context.Context, lineUserID string) (*domain.LineCustomer, error) {
	customer, ok := r.customers[lineUserID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return customer, nil
}

func (r *fakeLineCustomerRepo) GetByPhone(ctx context.Context, phone string) (*domain.LineCustomer, error) {
	for _, c := range r.customers {
		if c.Phone != nil && *c.Phone == phone {
			return c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeMessenger struct {
	pushes []string
}

func (m *fakeMessenger) Push(ctx context.Context, recipientID, message string) error {
	m.pushes = append(m.pushes, message)
	return nil
}

func (m *fakeMessenger) PushMulti(ctx context.Context, recipientIDs []string, message string) {
	for range recipientIDs {
		m.pushes = append(m.pushes, message)
	}
}

func (m *fakeMessenger) last() string {
	if len(m.pushes) == 0 {
		return ""
	}
	return m.pushes[len(m.pushes)-1]
}

type webhookFixture struct {
	service   *LineWebhookService
	users     *fakeUserRepo
	customers *fakeLineCustomerRepo
	messenger *fakeMessenger
}

func newWebhookFixture(t *testing.T, users ...*domain.User) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		users:     newFakeUserRepo(users...),
		customers: &fakeLineCustomerRepo{},
		messenger: &fakeMessenger{},
	}
	f.service = NewLineWebhookService(f.users, f.customers, f.messenger, "https://repair.example.com", zap.NewNop())
	return f
}

func messageEvent(lineUserID, text string) WebhookEvent {
	var event WebhookEvent
	event.Type = "message"
	event.Source.UserID = lineUserID
	event.Message.Type = "text"
	event.Message.Text = text
	return event
}

func operatorUser(t *testing.T, username, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password, 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &domain.User{
		ID:           "user-" + username,
		Username:     username,
		Name:         "張師傅",
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
}

func TestFollowRegistersCustomerAndWelcomes(t *testing.T) {
	f := newWebhookFixture(t)
	var event WebhookEvent
	event.Type = "follow"
	event.Source.UserID = "Uline1"

	f.service.HandleEvents(context.Background(), []WebhookEvent{event})

	if _, err := f.customers.GetByLineUserID(context.Background(), "Uline1"); err != nil {
		t.Fatalf("customer not registered: %v", err)
	}
	if !strings.Contains(f.messenger.last(), "歡迎使用修繕通") {
		t.Errorf("welcome = %q", f.messenger.last())
	}
	if !strings.Contains(f.messenger.last(), "https://repair.example.com/repair") {
		t.Errorf("welcome missing frontend link: %q", f.messenger.last())
	}
}

func TestBindCommandLinksAccount(t *testing.T) {
	user := operatorUser(t, "chang", "secret", domain.RoleWorker)
	f := newWebhookFixture(t, user)

	f.service.HandleEvents(context.Background(), []WebhookEvent{
		messageEvent("Uline1", "綁定 chang secret"),
	})

	stored := f.users.users[user.ID]
	if stored.LineUserID == nil || *stored.LineUserID != "Uline1" {
		t.Fatalf("line_user_id = %v, want Uline1", stored.LineUserID)
	}
	reply := f.messenger.last()
	if !strings.Contains(reply, "綁定成功") || !strings.Contains(reply, "師傅") {
		t.Errorf("reply = %q", reply)
	}
}

func TestBindRejectsBadCredentials(t *testing.T) {
	user := operatorUser(t, "chang", "secret", domain.RoleWorker)
	f := newWebhookFixture(t, user)

	f.service.HandleEvents(context.Background(), []WebhookEvent{
		messageEvent("Uline1", "綁定 chang wrongpass"),
		messageEvent("Uline1", "綁定 nobody secret"),
	})

	if f.users.users[user.ID].LineUserID != nil {
		t.Error("account bound despite bad credentials")
	}
	for _, reply := range f.messenger.pushes {
		if !strings.Contains(reply, "帳號或密碼錯誤") {
			t.Errorf("reply = %q", reply)
		}
	}
}

func TestBindRejectsInactiveAccount(t *testing.T) {
	user := operatorUser(t, "chang", "secret", domain.RoleWorker)
	user.Active = false
	f := newWebhookFixture(t, user)

	f.service.HandleEvents(context.Background(), []WebhookEvent{
		messageEvent("Uline1", "綁定 chang secret"),
	})

	if !strings.Contains(f.messenger.last(), "帳號或密碼錯誤") {
		t.Errorf("reply = %q", f.messenger.last())
	}
}

func TestBindWarnsWhenBoundElsewhere(t *testing.T) {
	user := operatorUser(t, "chang", "secret", domain.RoleWorker)
	other := "Uother"
	user.LineUserID = &other
	f := newWebhookFixture(t, user)

	f.service.HandleEvents(context.Background(), []WebhookEvent{
		messageEvent("Uline1", "綁定 chang secret"),
	})

	if *f.users.users[user.ID].LineUserID != "Uother" {
		t.Error("existing binding overwritten")
	}
	if !strings.Contains(f.messenger.last(), "已被其他 LINE 綁定") {
		t.Errorf("reply = %q", f.messenger.last())
	}
}

func TestUnbindReleasesOwnBindingOnly(t *testing.T) {
	user := operatorUser(t, "chang", "secret", domain.RoleWorker)
	bound := "Uline1"
	user.LineUserID = &bound
	f := newWebhookFixture(t, user)
	ctx := context.Background()

	// Another LINE account cannot release the binding.
	f.service.HandleEvents(ctx, []WebhookEvent{
		messageEvent("Uother", "解除綁定 chang secret"),
	})
	if f.users.users[user.ID].LineUserID == nil {
		t.Fatal("binding released by foreign account")
	}
	if !strings.Contains(f.messenger.last(), "並非綁定在這個 LINE 帳號上") {
		t.Errorf("reply = %q", f.messenger.last())
	}

	f.service.HandleEvents(ctx, []WebhookEvent{
		messageEvent("Uline1", "解除綁定 chang secret"),
	})
	if f.users.users[user.ID].LineUserID != nil {
		t.Error("binding not released")
	}
	if !strings.Contains(f.messenger.last(), "已解除綁定") {
		t.Errorf("reply = %q", f.messenger.last())
	}
}

func TestMalformedCommandGetsFormatHint(t *testing.T) {
	f := newWebhookFixture(t)

	f.service.HandleEvents(context.Background(), []WebhookEvent{
		messageEvent("Uline1", "綁定 chang"),
	})
	if !strings.Contains(f.messenger.last(), "格式錯誤") {
		t.Errorf("reply = %q", f.messenger.last())
	}

	f.service.HandleEvents(context.Background(), []WebhookEvent{
		messageEvent("Uline1", "解除綁定"),
	})
	if !strings.Contains(f.messenger.last(), "解除綁定 帳號 密碼") {
		t.Errorf("reply = %q", f.messenger.last())
	}
}

func TestPlainMessageGetsDefaultReply(t *testing.T) {
	f := newWebhookFixture(t)

	f.service.HandleEvents(context.Background(), []WebhookEvent{
		messageEvent("Uline1", "冷氣壞了怎麼辦"),
	})
	reply := f.messenger.last()
	if !strings.Contains(reply, "請問需要什麼服務") || !strings.Contains(reply, "/track") {
		t.Errorf("reply = %q", reply)
	}
}

func TestEventsWithoutSourceIgnored(t *testing.T) {
	f := newWebhookFixture(t)

	f.service.HandleEvents(context.Background(), []WebhookEvent{
		messageEvent("", "綁定 chang secret"),
		{Type: "unfollow"},
	})
	if len(f.messenger.pushes) != 0 {
		t.Errorf("pushes = %v, want none", f.messenger.pushes)
	}
}
