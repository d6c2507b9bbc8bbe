package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// reply scripts one StreamChat call.
type reply struct {
	conversationID string // defaults to the request's id, or "conv-1"
	fragments      []string
	err            error
	reject         error         // returned before headers
	gate           chan struct{} // blocks before headers until closed
}

type fakeTransport struct {
	mu       sync.Mutex
	next     func(n int, req *domain.ChatRequest) reply
	requests []domain.ChatRequest

	list    []domain.Conversation
	details map[string]*domain.ConversationDetail

	listErr, getErr, renameErr, deleteErr, deleteAllErr error

	listCalls, getCalls int
	renamed, deleted    []string
	titles              []string
	deletedAll          int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{details: map[string]*domain.ConversationDetail{}}
}

func (f *fakeTransport) StreamChat(ctx context.Context, req *domain.ChatRequest, onHeaders func(string), onFragment func(string)) error {
	f.mu.Lock()
	n := len(f.requests)
	cp := *req
	cp.Messages = append([]domain.Turn(nil), req.Messages...)
	f.requests = append(f.requests, cp)
	var r reply
	if f.next != nil {
		r = f.next(n, req)
	} else {
		r = reply{fragments: []string{"Hi", " there"}}
	}
	f.mu.Unlock()

	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.reject != nil {
		return r.reject
	}
	id := r.conversationID
	if id == "" {
		id = req.ConversationID
	}
	if id == "" {
		id = "conv-1"
	}
	onHeaders(id)
	for _, fragment := range r.fragments {
		onFragment(fragment)
	}
	return r.err
}

func (f *fakeTransport) ListConversations(context.Context) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Conversation(nil), f.list...), nil
}

func (f *fakeTransport) GetConversation(_ context.Context, id string) (*domain.ConversationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	d, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s not found", id)
	}
	return d, nil
}

func (f *fakeTransport) RenameConversation(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renamed = append(f.renamed, id)
	f.titles = append(f.titles, title)
	return f.renameErr
}

func (f *fakeTransport) DeleteConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeTransport) DeleteAllConversations(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedAll++
	return f.deleteAllErr
}

func (f *fakeTransport) Requests() []domain.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChatRequest(nil), f.requests...)
}

func (f *fakeTransport) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type memRatings struct {
	mu      sync.Mutex
	ratings map[string]map[string]domain.Rating
}

func newMemRatings() *memRatings {
	return &memRatings{ratings: map[string]map[string]domain.Rating{}}
}

func (r *memRatings) Load(conversationID string) (map[string]domain.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]domain.Rating{}
	for k, v := range r.ratings[conversationID] {
		out[k] = v
	}
	return out, nil
}

func (r *memRatings) Save(conversationID, messageID string, rating domain.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ratings[conversationID] == nil {
		r.ratings[conversationID] = map[string]domain.Rating{}
	}
	r.ratings[conversationID][messageID] = rating
	return nil
}

func (r *memRatings) DeleteConversation(conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ratings, conversationID)
	return nil
}

func (r *memRatings) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ratings = map[string]map[string]domain.Rating{}
	return nil
}

// sequentialIDs returns an id generator yielding m1, m2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("m%d", n)
	}
}

func newTestManager(ft *fakeTransport, opts ...Option) *Manager {
	return NewManager(ft, append([]Option{WithIDGenerator(sequentialIDs())}, opts...)...)
}

func waitForRequests(t *testing.T, ft *fakeTransport, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return ft.requestCount() >= n }, 2*time.Second, 5*time.Millisecond)
}
