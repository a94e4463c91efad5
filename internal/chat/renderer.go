package chat

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wrale/sso-chatbot/internal/activity"
	"github.com/wrale/sso-chatbot/internal/directline"
	"github.com/wrale/sso-chatbot/internal/templates"
)

const timeLayout = "15:04"

// Renderer writes forwarded events as a transcript. Render is safe for
// concurrent use.
type Renderer struct {
	tmpl    *templates.Templates
	botName string
	userID  string
	now     func() time.Time
	logger  *zap.Logger

	mu sync.Mutex
	w  io.Writer
}

// RendererOption configures a Renderer
type RendererOption func(*Renderer)

// WithUserID hides echoes of messages sent with this id
func WithUserID(id string) RendererOption {
	return func(r *Renderer) {
		r.userID = id
	}
}

// WithClock sets the time source used for untimestamped activities
func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRendererLogger sets the renderer logger
func WithRendererLogger(logger *zap.Logger) RendererOption {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRenderer creates a renderer labelling bot output with botName
func NewRenderer(w io.Writer, tmpl *templates.Templates, botName string, opts ...RendererOption) *Renderer {
	r := &Renderer{
		tmpl:    tmpl,
		botName: botName,
		now:     time.Now,
		logger:  zap.NewNop(),
		w:       w,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("renderer")
	return r
}

// Render writes one event
func (r *Renderer) Render(ev directline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	switch ev.Kind {
	case directline.KindActivity:
		err = r.renderActivity(ev.Activity)
	case directline.KindConnected:
		err = r.tmpl.RenderStatus(r.w, templates.StatusData{Status: "connected to " + r.botName})
	case directline.KindReconnected:
		err = r.tmpl.RenderStatus(r.w, templates.StatusData{Status: "reconnected"})
	case directline.KindDisconnected:
		data := templates.StatusData{Status: "disconnected"}
		if ev.Err != nil {
			data.Detail = ev.Err.Error()
		}
		err = r.tmpl.RenderStatus(r.w, data)
	case directline.KindTokenExpired:
		err = r.tmpl.RenderStatus(r.w, templates.StatusData{Status: "session expired"})
	}
	if err != nil {
		r.logger.Warn("rendering event", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

func (r *Renderer) renderActivity(a *activity.Activity) error {
	if a == nil || r.isOwn(a) {
		return nil
	}

	switch a.Type {
	case activity.TypeTyping:
		if !a.IsFromBot() {
			return nil
		}
		return r.tmpl.RenderTyping(r.w, templates.TypingData{Sender: r.botName})

	case activity.TypeMessage:
		if card, ok := oauthCard(a); ok {
			return r.tmpl.RenderSignIn(r.w, templates.SignInData{
				Time:   r.timestamp(a),
				Sender: r.botName,
				Text:   card.Text,
				Link:   card.SignInLink(),
			})
		}
		return r.tmpl.RenderMessage(r.w, templates.MessageData{
			Time:        r.timestamp(a),
			Sender:      r.botName,
			Text:        a.Text,
			Attachments: attachmentNames(a.Attachments),
			Actions:     actionTitles(a.SuggestedActions),
		})
	}

	// Events, invokes and other control activities have no transcript entry
	return nil
}

func (r *Renderer) isOwn(a *activity.Activity) bool {
	if a.From.Role == activity.RoleUser {
		return true
	}
	return r.userID != "" && a.From.ID == r.userID
}

func (r *Renderer) timestamp(a *activity.Activity) string {
	if a.Timestamp != nil && !a.Timestamp.IsZero() {
		return a.Timestamp.Local().Format(timeLayout)
	}
	return r.now().Format(timeLayout)
}

func oauthCard(a *activity.Activity) (*activity.OAuthCard, bool) {
	for _, att := range a.Attachments {
		if att.ContentType != activity.ContentTypeOAuthCard {
			continue
		}
		card, err := activity.DecodeOAuthCard(att.Content)
		if err != nil {
			return &activity.OAuthCard{}, true
		}
		return card, true
	}
	return nil, false
}

func attachmentNames(atts []activity.Attachment) []string {
	var names []string
	for _, att := range atts {
		switch {
		case att.Name != "":
			names = append(names, att.Name)
		case att.ContentURL != "":
			names = append(names, att.ContentURL)
		default:
			names = append(names, att.ContentType)
		}
	}
	return names
}

func actionTitles(sa *activity.SuggestedActions) []string {
	if sa == nil {
		return nil
	}
	titles := make([]string, 0, len(sa.Actions))
	for _, action := range sa.Actions {
		if action.Title != "" {
			titles = append(titles, action.Title)
		} else if s, ok := action.Value.(string); ok {
			titles = append(titles, s)
		}
	}
	return titles
}
