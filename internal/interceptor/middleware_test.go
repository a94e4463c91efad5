package interceptor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wrale/sso-chatbot/internal/activity"
	"github.com/wrale/sso-chatbot/internal/directline"
	"github.com/wrale/sso-chatbot/internal/identity"
)

// recorder captures the order of calls across fakes
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeSession struct {
	principal *identity.Principal
	token     string
	ok        bool

	mu        sync.Mutex
	resources []string
}

func (s *fakeSession) CurrentPrincipal() *identity.Principal {
	return s.principal
}

func (s *fakeSession) AcquireSilently(ctx context.Context, resourceURI string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, resourceURI)
	return s.token, s.ok
}

func (s *fakeSession) UserID() string {
	if s.principal != nil {
		return identity.DeriveUserID(s.principal)
	}
	return "anonymous"
}

type fakeTransport struct {
	rec   *recorder
	reply string
	err   error

	mu         sync.Mutex
	posted     []*activity.Activity
	dispatched []*activity.Activity
}

func (t *fakeTransport) PostActivity(ctx context.Context, a *activity.Activity) (string, error) {
	t.mu.Lock()
	t.posted = append(t.posted, a)
	t.mu.Unlock()
	t.rec.add("post:" + a.Name)
	return t.reply, t.err
}

func (t *fakeTransport) Dispatch(a *activity.Activity) {
	t.mu.Lock()
	t.dispatched = append(t.dispatched, a)
	t.mu.Unlock()
	t.rec.add("dispatch:" + a.Name)
}

var ada = &identity.Principal{AccountID: "abc", Name: "Ada Lovelace"}

func signInCard() *activity.Activity {
	return &activity.Activity{
		Type: activity.TypeMessage,
		ID:   "card-1",
		From: activity.ChannelAccount{ID: "bot", Role: activity.RoleBot},
		Attachments: []activity.Attachment{{
			ContentType: activity.ContentTypeOAuthCard,
			Content: json.RawMessage(`{
				"connectionName": "graph",
				"tokenExchangeResource": {"id": "x-1", "uri": "api://bot/access_as_user"}
			}`),
		}},
	}
}

func forwardTo(rec *recorder) Next {
	return func(ev directline.Event) {
		name := string(ev.Kind)
		if ev.Activity != nil {
			name += ":" + ev.Activity.ID
		}
		rec.add("forward:" + name)
	}
}

func TestHandleSignInCard(t *testing.T) {
	tests := []struct {
		name         string
		token        string
		ok           bool
		reply        string
		postErr      error
		wantOutcome  Outcome
		wantPosts    int
		wantForwards int
	}{
		{
			name:        "exchange accepted",
			token:       "T",
			ok:          true,
			reply:       "ok",
			wantOutcome: Suppressed,
			wantPosts:   1,
		},
		{
			name:         "bot asks for retry",
			token:        "T",
			ok:           true,
			reply:        directline.ReplyRetry,
			wantOutcome:  ForwardedAfterRetry,
			wantPosts:    1,
			wantForwards: 1,
		},
		{
			name:         "post fails",
			token:        "T",
			ok:           true,
			postErr:      directline.ErrTokenExpired,
			wantOutcome:  ForwardedAfterError,
			wantPosts:    1,
			wantForwards: 1,
		},
		{
			name:         "transport closed",
			token:        "T",
			ok:           true,
			postErr:      directline.ErrClosed,
			wantOutcome:  ForwardedAfterError,
			wantPosts:    1,
			wantForwards: 1,
		},
		{
			name:         "no token",
			wantOutcome:  ForwardedNoToken,
			wantForwards: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			session := &fakeSession{principal: ada, token: tt.token, ok: tt.ok}
			transport := &fakeTransport{rec: rec, reply: tt.reply, err: tt.postErr}

			var outcomes []Outcome
			var mu sync.Mutex
			i := New(session, transport, WithObserver(func(ev directline.Event, o Outcome) {
				mu.Lock()
				outcomes = append(outcomes, o)
				mu.Unlock()
			}))

			ev := directline.Event{Kind: directline.KindActivity, Activity: signInCard()}
			if d := i.Handle(context.Background(), ev, forwardTo(rec)); d != DecisionDeferred {
				t.Fatalf("Handle() = %v, want deferred", d)
			}
			i.Wait()

			if diff := cmp.Diff([]Outcome{tt.wantOutcome}, outcomes); diff != "" {
				t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
			}
			if got := len(transport.posted); got != tt.wantPosts {
				t.Fatalf("posted %d activities, want %d", got, tt.wantPosts)
			}

			var forwards int
			for _, call := range rec.list() {
				if call == "forward:activity:card-1" {
					forwards++
				}
			}
			if forwards != tt.wantForwards {
				t.Errorf("forwarded %d times, want %d", forwards, tt.wantForwards)
			}

			if diff := cmp.Diff([]string{"api://bot/access_as_user"}, session.resources); diff != "" {
				t.Errorf("resources mismatch (-want +got):\n%s", diff)
			}

			if tt.wantPosts == 0 {
				return
			}

			// The post always precedes a fallback forward
			if tt.wantForwards > 0 {
				want := []string{"post:" + activity.NameTokenExchange, "forward:activity:card-1"}
				if diff := cmp.Diff(want, rec.list()); diff != "" {
					t.Errorf("call order mismatch (-want +got):\n%s", diff)
				}
			}

			want := &activity.Activity{
				Type: activity.TypeInvoke,
				Name: activity.NameTokenExchange,
				Value: activity.TokenExchangeValue{
					ID:             "x-1",
					ConnectionName: "graph",
					Token:          "T",
				},
				From: activity.ChannelAccount{ID: "sso-chatbotabc", Name: "Ada Lovelace", Role: activity.RoleUser},
			}
			if diff := cmp.Diff(want, transport.posted[0]); diff != "" {
				t.Errorf("invoke mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandleConnected(t *testing.T) {
	rec := &recorder{}
	transport := &fakeTransport{rec: rec}
	i := New(&fakeSession{principal: ada}, transport)

	d := i.Handle(context.Background(), directline.Event{Kind: directline.KindConnected}, forwardTo(rec))
	if d != DecisionForwarded {
		t.Fatalf("Handle() = %v, want forwarded", d)
	}

	want := []string{"dispatch:" + activity.NameStartConversation, "forward:connected"}
	if diff := cmp.Diff(want, rec.list()); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}

	greeting := &activity.Activity{
		Type:  activity.TypeEvent,
		Name:  activity.NameStartConversation,
		Value: activity.StartConversationValue{Text: "Ada Lovelace"},
		From:  activity.ChannelAccount{ID: "sso-chatbotabc", Name: "Ada Lovelace", Role: activity.RoleUser},
	}
	if diff := cmp.Diff([]*activity.Activity{greeting}, transport.dispatched); diff != "" {
		t.Errorf("greeting mismatch (-want +got):\n%s", diff)
	}
	if len(transport.posted) != 0 {
		t.Errorf("connected must not post synchronously, got %d posts", len(transport.posted))
	}
}

func TestHandlePassThrough(t *testing.T) {
	tests := []struct {
		name string
		ev   directline.Event
	}{
		{
			name: "plain bot message",
			ev: directline.Event{Kind: directline.KindActivity, Activity: &activity.Activity{
				Type: activity.TypeMessage, ID: "m1", Text: "hi",
				From: activity.ChannelAccount{Role: activity.RoleBot},
			}},
		},
		{
			name: "oauth card from user",
			ev: func() directline.Event {
				a := signInCard()
				a.From.Role = activity.RoleUser
				return directline.Event{Kind: directline.KindActivity, Activity: a}
			}(),
		},
		{name: "reconnected", ev: directline.Event{Kind: directline.KindReconnected}},
		{name: "disconnected", ev: directline.Event{Kind: directline.KindDisconnected}},
		{name: "token expired", ev: directline.Event{Kind: directline.KindTokenExpired}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			session := &fakeSession{principal: ada, token: "T", ok: true}
			transport := &fakeTransport{rec: rec, reply: "ok"}
			i := New(session, transport)

			var got []directline.Event
			d := i.Handle(context.Background(), tt.ev, func(ev directline.Event) {
				got = append(got, ev)
			})
			if d != DecisionForwarded {
				t.Fatalf("Handle() = %v, want forwarded", d)
			}
			// Forwarded before Handle returned, unchanged
			if diff := cmp.Diff([]directline.Event{tt.ev}, got); diff != "" {
				t.Errorf("forwarded events mismatch (-want +got):\n%s", diff)
			}
			if len(transport.posted)+len(transport.dispatched) != 0 {
				t.Error("pass-through must not touch the transport")
			}
			if len(session.resources) != 0 {
				t.Error("pass-through must not acquire tokens")
			}
		})
	}
}

func TestHandleConcurrentCards(t *testing.T) {
	rec := &recorder{}
	transport := &fakeTransport{rec: rec, reply: "ok"}
	i := New(&fakeSession{principal: ada, token: "T", ok: true}, transport)

	const n = 10
	for k := 0; k < n; k++ {
		i.Handle(context.Background(), directline.Event{Kind: directline.KindActivity, Activity: signInCard()}, forwardTo(rec))
	}
	i.Wait()

	if got := len(transport.posted); got != n {
		t.Errorf("posted %d invokes, want %d", got, n)
	}
	for _, call := range rec.list() {
		if call == "forward:activity:card-1" {
			t.Fatal("accepted exchanges must not forward the card")
		}
	}
}

func TestOutcomeForwards(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    bool
	}{
		{Forwarded, true},
		{Suppressed, false},
		{ForwardedAfterRetry, true},
		{ForwardedAfterError, true},
		{ForwardedNoToken, true},
	}
	for _, tt := range tests {
		if got := tt.outcome.Forwards(); got != tt.want {
			t.Errorf("%v.Forwards() = %v, want %v", tt.outcome, got, tt.want)
		}
	}
}
