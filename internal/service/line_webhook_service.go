package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/auth"
	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/notify"
	"github.com/repairflow/repairflow/internal/repository"
)

var (
	bindPattern   = regexp.MustCompile(`^綁定\s+(\S+)\s+(\S+)$`)
	unbindPattern = regexp.MustCompile(`^解除綁定\s+(\S+)\s+(\S+)$`)
)

// WebhookEvent is one inbound messaging event.
type WebhookEvent struct {
	Type   string `json:"type"`
	Source struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

// LineWebhookService reacts to inbound LINE events. Customers who add the
// service account are registered for push notifications; operators bind
// their account by messaging credentials to the bot.
type LineWebhookService struct {
	users       repository.UserRepository
	customers   repository.LineCustomerRepository
	messenger   notify.Messenger
	logger      *zap.Logger
	frontendURL string
}

// NewLineWebhookService constructs the service.
func NewLineWebhookService(
	users repository.UserRepository,
	customers repository.LineCustomerRepository,
	messenger notify.Messenger,
	frontendURL string,
	logger *zap.Logger,
) *LineWebhookService {
	return &LineWebhookService{
		users:       users,
		customers:   customers,
		messenger:   messenger,
		logger:      logger,
		frontendURL: frontendURL,
	}
}

// HandleEvents processes every event in a webhook delivery. Failures are
// logged, never surfaced: the webhook endpoint always acknowledges so the
// platform does not retry old deliveries.
func (s *LineWebhookService) HandleEvents(ctx context.Context, events []WebhookEvent) {
	for _, event := range events {
		lineUserID := event.Source.UserID
		if lineUserID == "" {
			continue
		}
		switch event.Type {
		case "follow":
			s.handleFollow(ctx, lineUserID)
		case "unfollow":
			s.logger.Info("line contact unfollowed", zap.String("line_user_id", lineUserID))
		case "message":
			if event.Message.Type == "text" {
				s.handleMessage(ctx, lineUserID, strings.TrimSpace(event.Message.Text))
			}
		}
	}
}

func (s *LineWebhookService) handleFollow(ctx context.Context, lineUserID string) {
	customer := &domain.LineCustomer{LineUserID: lineUserID}
	if err := s.customers.Upsert(ctx, customer); err != nil {
		s.logger.Warn("line contact registration failed",
			zap.String("line_user_id", lineUserID), zap.Error(err))
		return
	}
	s.logger.Info("line contact registered", zap.String("line_user_id", lineUserID))
	s.push(ctx, lineUserID, s.welcomeMessage())
}

func (s *LineWebhookService) handleMessage(ctx context.Context, lineUserID, text string) {
	if m := bindPattern.FindStringSubmatch(text); m != nil {
		s.bindAccount(ctx, lineUserID, m[1], m[2])
		return
	}
	if m := unbindPattern.FindStringSubmatch(text); m != nil {
		s.unbindAccount(ctx, lineUserID, m[1], m[2])
		return
	}
	if strings.HasPrefix(text, "解除綁定") {
		s.push(ctx, lineUserID, "⚠️ 格式錯誤\n\n正確格式：解除綁定 帳號 密碼")
		return
	}
	if strings.HasPrefix(text, "綁定") {
		s.push(ctx, lineUserID, "⚠️ 格式錯誤\n\n正確格式：綁定 帳號 密碼")
		return
	}
	s.push(ctx, lineUserID, s.defaultReply())
}

func (s *LineWebhookService) bindAccount(ctx context.Context, lineUserID, username, password string) {
	user, ok := s.verifyCredentials(ctx, lineUserID, username, password)
	if !ok {
		return
	}

	if user.LineUserID != nil && *user.LineUserID != lineUserID {
		s.push(ctx, lineUserID, fmt.Sprintf(
			"⚠️ 帳號「%s（%s）」已被其他 LINE 綁定。\n\n如需重新綁定，請先由原 LINE 輸入：\n解除綁定 %s 密碼",
			user.Name, user.Username, user.Username))
		return
	}

	user.LineUserID = &lineUserID
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("line bind failed", zap.String("username", username), zap.Error(err))
		return
	}

	roleLabel := "師傅"
	if user.Role == domain.RoleAdmin {
		roleLabel = "管理員"
	}
	s.push(ctx, lineUserID, fmt.Sprintf(
		"✅ 綁定成功！\n\n帳號：%s（%s）\n角色：%s\n\n之後的派工通知將會透過 LINE 推送給您。",
		user.Name, user.Username, roleLabel))
	s.logger.Info("line account bound",
		zap.String("username", username), zap.String("line_user_id", lineUserID))
}

func (s *LineWebhookService) unbindAccount(ctx context.Context, lineUserID, username, password string) {
	user, ok := s.verifyCredentials(ctx, lineUserID, username, password)
	if !ok {
		return
	}
	if user.LineUserID == nil || *user.LineUserID != lineUserID {
		s.push(ctx, lineUserID, "⚠️ 此帳號並非綁定在這個 LINE 帳號上")
		return
	}

	user.LineUserID = nil
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("line unbind failed", zap.String("username", username), zap.Error(err))
		return
	}
	s.push(ctx, lineUserID, fmt.Sprintf(
		"✅ 已解除綁定！\n\n帳號：%s（%s）\n\n之後將不會收到 LINE 通知。",
		user.Name, user.Username))
	s.logger.Info("line account unbound", zap.String("username", username))
}

func (s *LineWebhookService) verifyCredentials(ctx context.Context, lineUserID, username, password string) (*domain.User, bool) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("line credential lookup failed", zap.Error(err))
		}
		s.push(ctx, lineUserID, "❌ 帳號或密碼錯誤\n請確認後再試一次。")
		return nil, false
	}
	if !user.Active || auth.ComparePassword(user.PasswordHash, password) != nil {
		s.push(ctx, lineUserID, "❌ 帳號或密碼錯誤\n請確認後再試一次。")
		return nil, false
	}
	return user, true
}

func (s *LineWebhookService) welcomeMessage() string {
	return fmt.Sprintf(
		"歡迎使用修繕通！🏠\n\n我們提供專業到府維修服務，以下是常用功能：\n\n"+
			"🔧 報修填單：\n%s/repair\n\n📋 查詢進度：\n%s/track\n\n"+
			"（師傅/員工如需綁定帳號，請輸入：綁定 帳號 密碼）",
		s.frontendURL, s.frontendURL)
}

func (s *LineWebhookService) defaultReply() string {
	return fmt.Sprintf(
		"您好！請問需要什麼服務呢？\n\n🔧 報修填單：\n%s/repair\n\n📋 查詢進度：\n%s/track",
		s.frontendURL, s.frontendURL)
}

func (s *LineWebhookService) push(ctx context.Context, lineUserID, message string) {
	if err := s.messenger.Push(ctx, lineUserID, message); err != nil {
		s.logger.Warn("line reply failed", zap.String("to", lineUserID), zap.Error(err))
	}
}
