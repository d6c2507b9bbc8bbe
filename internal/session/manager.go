package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
)

// thread is the local state of one conversation.
type thread struct {
	ref      ConversationRef
	messages []Message
	// pending is the id of the assistant message currently streaming, if any.
	pending string
	// creating is open while a request for a temporary conversation waits for
	// the relay to name it.
	creating chan struct{}
}

// Manager holds the client's conversations and messages. All methods are safe
// for concurrent use; stream reading happens on the calling goroutine and only
// takes the lock to apply each piece.
type Manager struct {
	transport     Transport
	ratings       RatingStore
	log           *logger.Logger
	titleMaxChars int
	newID         func() string
	now           func() time.Time
	onFragment    func(messageID, fragment string)

	mu        sync.Mutex
	summaries []Summary
	threads   map[string]*thread
	aliases   map[string]string // superseded token or id -> durable id
	skipFetch map[string]bool
	active    ConversationRef

	// Renames of conversations the relay has not named yet, sent once it does.
	pendingTitles map[string]string
}

// Option configures a Manager.
type Option func(*Manager)

func WithRatingStore(rs RatingStore) Option {
	return func(m *Manager) { m.ratings = rs }
}

func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

func WithTitleMaxChars(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.titleMaxChars = n
		}
	}
}

// WithIDGenerator overrides how client message ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithFragmentListener registers fn to see each reply fragment after it has
// been applied. fn runs on the streaming goroutine.
func WithFragmentListener(fn func(messageID, fragment string)) Option {
	return func(m *Manager) { m.onFragment = fn }
}

// NewManager creates a manager with an empty conversation list.
func NewManager(transport Transport, opts ...Option) *Manager {
	m := &Manager{
		transport:     transport,
		log:           logger.NewNop(),
		titleMaxChars: 30,
		newID:         uuid.NewString,
		now:           time.Now,
		threads:       map[string]*thread{},
		aliases:       map[string]string{},
		skipFetch:     map[string]bool{},
		pendingTitles: map[string]string{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendMessage appends a user message and an assistant placeholder to the active
// conversation, creating a temporary one when none is selected, and streams the
// reply into the placeholder.
func (m *Manager) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	m.mu.Lock()
	th := m.activeThread()
	if th == nil {
		ref := newTemporary()
		th = &thread{ref: ref}
		m.threads[ref.value] = th
		m.summaries = append([]Summary{{
			Ref:       ref,
			Title:     domain.DeriveTitle(strings.TrimSpace(text), m.titleMaxChars),
			UpdatedAt: m.now(),
		}}, m.summaries...)
		m.active = ref
	}
	if th.pending != "" {
		m.mu.Unlock()
		return ErrStreamInProgress
	}

	now := m.now()
	user := Message{ID: m.newID(), Role: domain.RoleUser, Content: text, CreatedAt: now}
	placeholder := Message{ID: m.newID(), Role: domain.RoleAssistant, Pending: true, CreatedAt: now}
	th.messages = append(th.messages, user, placeholder)
	th.pending = placeholder.ID
	history := toTurns(th.messages[:len(th.messages)-1])
	ref := th.ref
	m.mu.Unlock()

	return m.stream(ctx, ref, history, true, placeholder.ID)
}

// Regenerate replaces an assistant reply in place, using only the messages
// before it as history.
func (m *Manager) Regenerate(ctx context.Context, messageID string) error {
	m.mu.Lock()
	th := m.activeThread()
	i := th.find(messageID)
	if i < 0 {
		m.mu.Unlock()
		return ErrMessageNotFound
	}
	if th.messages[i].Role != domain.RoleAssistant {
		m.mu.Unlock()
		return ErrNotAssistant
	}
	if th.pending != "" {
		m.mu.Unlock()
		return ErrStreamInProgress
	}

	history := toTurns(th.messages[:i])
	th.messages[i].Content = ""
	th.messages[i].Pending = true
	th.pending = messageID
	ref := th.ref
	m.mu.Unlock()

	return m.stream(ctx, ref, history, false, messageID)
}

// EditUserMessage rewrites a user message locally. It does not trigger a new reply.
func (m *Manager) EditUserMessage(messageID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	th := m.activeThread()
	i := th.find(messageID)
	if i < 0 {
		return ErrMessageNotFound
	}
	if th.messages[i].Role != domain.RoleUser {
		return ErrNotUser
	}
	th.messages[i].Content = text
	return nil
}

// Rate records feedback on an assistant reply. Ratings stay on this client.
func (m *Manager) Rate(messageID string, rating domain.Rating) error {
	if !rating.Valid() {
		return ErrInvalidRating
	}
	m.mu.Lock()
	th := m.activeThread()
	i := th.find(messageID)
	if i < 0 {
		m.mu.Unlock()
		return ErrMessageNotFound
	}
	if th.messages[i].Role != domain.RoleAssistant {
		m.mu.Unlock()
		return ErrNotAssistant
	}
	th.messages[i].Rating = rating
	ref := th.ref
	m.mu.Unlock()

	if ref.IsDurable() {
		m.saveRating(ref.value, messageID, rating)
	}
	return nil
}

// DeleteMessage removes a message locally. Deleting a streaming placeholder
// drops the rest of its reply.
func (m *Manager) DeleteMessage(messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	th := m.activeThread()
	i := th.find(messageID)
	if i < 0 {
		return ErrMessageNotFound
	}
	th.messages = append(th.messages[:i], th.messages[i+1:]...)
	if th.pending == messageID {
		th.pending = ""
	}
	return nil
}

// NewConversation clears the selection; the next SendMessage starts a conversation.
func (m *Manager) NewConversation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = ConversationRef{}
}

// SelectConversation makes ref active and loads its messages from the relay,
// unless the local copy is authoritative: a temporary conversation, one that
// was just named by the relay, or one that is still streaming.
func (m *Manager) SelectConversation(ctx context.Context, ref ConversationRef) error {
	if ref.IsZero() {
		m.NewConversation()
		return nil
	}

	m.mu.Lock()
	ref = m.canonical(ref)
	m.active = ref
	if ref.IsTemporary() {
		m.activeThread()
		m.mu.Unlock()
		return nil
	}
	if m.skipFetch[ref.value] {
		delete(m.skipFetch, ref.value)
		m.mu.Unlock()
		return nil
	}
	if th := m.threads[ref.value]; th != nil && th.pending != "" {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	detail, err := m.transport.GetConversation(ctx, ref.value)
	if err != nil {
		m.log.Warn("failed to load conversation", "conversation_id", ref.value, "error", err)
		m.refreshAfterFailure(ctx)
		return err
	}
	ratings := m.loadRatings(ref.value)

	msgs := make([]Message, 0, len(detail.Messages))
	for _, v := range detail.Messages {
		msgs = append(msgs, Message{
			ID:        v.ID,
			Role:      v.Role,
			Content:   v.Content,
			Rating:    ratings[v.ID],
			CreatedAt: v.CreatedAt,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	th := m.threads[ref.value]
	if th == nil {
		th = &thread{ref: ref}
		m.threads[ref.value] = th
	}
	if th.pending != "" {
		return nil
	}
	th.messages = msgs
	if i := m.summaryIndex(ref); i >= 0 {
		m.summaries[i].Title = detail.Title
		m.summaries[i].MessageCount = detail.MessageCount
	}
	return nil
}

// Rename retitles a conversation locally first, then on the relay.
func (m *Manager) Rename(ctx context.Context, ref ConversationRef, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	m.mu.Lock()
	ref = m.canonical(ref)
	i := m.summaryIndex(ref)
	if i < 0 {
		m.mu.Unlock()
		return ErrNoConversation
	}
	m.summaries[i].Title = title
	if ref.IsTemporary() {
		m.pendingTitles[ref.value] = title
	}
	m.mu.Unlock()

	if ref.IsTemporary() {
		return nil
	}
	return m.renameRemote(ctx, ref.value, title)
}

func (m *Manager) renameRemote(ctx context.Context, conversationID, title string) error {
	if err := m.transport.RenameConversation(ctx, conversationID, title); err != nil {
		m.log.Warn("failed to rename conversation", "conversation_id", conversationID, "error", err)
		m.refreshAfterFailure(ctx)
		return err
	}
	return nil
}

// DeleteConversation removes a conversation locally first, then on the relay.
func (m *Manager) DeleteConversation(ctx context.Context, ref ConversationRef) error {
	m.mu.Lock()
	ref = m.canonical(ref)
	if i := m.summaryIndex(ref); i >= 0 {
		m.summaries = append(m.summaries[:i], m.summaries[i+1:]...)
	}
	delete(m.threads, ref.value)
	delete(m.skipFetch, ref.value)
	delete(m.pendingTitles, ref.value)
	if m.active == ref {
		m.active = ConversationRef{}
	}
	m.mu.Unlock()

	if ref.IsTemporary() {
		return nil
	}
	if m.ratings != nil {
		if err := m.ratings.DeleteConversation(ref.value); err != nil {
			m.log.Warn("failed to drop ratings", "conversation_id", ref.value, "error", err)
		}
	}
	if err := m.transport.DeleteConversation(ctx, ref.value); err != nil {
		m.log.Warn("failed to delete conversation", "conversation_id", ref.value, "error", err)
		m.refreshAfterFailure(ctx)
		return err
	}
	return nil
}

// ClearAll removes every conversation locally first, then on the relay.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	m.summaries = nil
	m.threads = map[string]*thread{}
	m.aliases = map[string]string{}
	m.skipFetch = map[string]bool{}
	m.pendingTitles = map[string]string{}
	m.active = ConversationRef{}
	m.mu.Unlock()

	if m.ratings != nil {
		if err := m.ratings.Clear(); err != nil {
			m.log.Warn("failed to clear ratings", "error", err)
		}
	}
	if err := m.transport.DeleteAllConversations(ctx); err != nil {
		m.log.Warn("failed to clear conversations", "error", err)
		m.refreshAfterFailure(ctx)
		return err
	}
	return nil
}

// Refresh replaces the list with the relay's. Conversations the relay has not
// named yet are kept in front.
func (m *Manager) Refresh(ctx context.Context) error {
	list, err := m.transport.ListConversations(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Summary, 0, len(list)+1)
	for _, s := range m.summaries {
		if s.Ref.IsTemporary() {
			out = append(out, s)
		}
	}
	for _, c := range list {
		out = append(out, Summary{
			Ref:          Durable(c.ID),
			Title:        c.Title,
			UpdatedAt:    c.UpdatedAt,
			MessageCount: c.MessageCount,
		})
	}
	m.summaries = out
	return nil
}

// Conversations returns the conversation list, most recent first.
func (m *Manager) Conversations() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Summary(nil), m.summaries...)
}

// Filter returns the conversations whose title contains query, ignoring case.
func (m *Manager) Filter(query string) []Summary {
	q := strings.ToLower(strings.TrimSpace(query))
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Summary{}
	for _, s := range m.summaries {
		if strings.Contains(strings.ToLower(s.Title), q) {
			out = append(out, s)
		}
	}
	return out
}

// Messages returns the active conversation's messages.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active.IsZero() {
		return []Message{}
	}
	th := m.threads[m.active.value]
	if th == nil {
		return []Message{}
	}
	return append([]Message(nil), th.messages...)
}

// Active returns the selected conversation, or the zero ref.
func (m *Manager) Active() ConversationRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Resolve maps a possibly superseded ref to the one currently in use.
func (m *Manager) Resolve(ref ConversationRef) ConversationRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canonical(ref)
}

// stream runs one request and applies its reply to the target message.
func (m *Manager) stream(ctx context.Context, ref ConversationRef, history []domain.Turn, persistUserTurn bool, target string) error {
	m.mu.Lock()
	th := m.thread(ref)
	// Only one request may create a conversation; later ones wait for its id.
	for th != nil && th.ref.IsTemporary() && th.creating != nil {
		ch := th.creating
		m.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			m.finishStream(ref, target, ctx.Err())
			return ctx.Err()
		}
		m.mu.Lock()
		th = m.thread(ref)
	}
	if th == nil {
		m.mu.Unlock()
		return ErrNoConversation
	}

	req := &domain.ChatRequest{
		Messages:           history,
		PersistUserTurn:    domain.Bool(persistUserTurn),
		AssistantMessageID: target,
	}
	var creating chan struct{}
	if th.ref.IsDurable() {
		req.ConversationID = th.ref.value
	} else {
		creating = make(chan struct{})
		th.creating = creating
	}
	requestRef := th.ref
	m.mu.Unlock()

	var named, title string
	err := m.transport.StreamChat(ctx, req,
		func(conversationID string) {
			title = m.reconcile(requestRef, conversationID)
			named = conversationID
			m.doneCreating(requestRef, creating)
		},
		func(fragment string) {
			m.appendFragment(requestRef, target, fragment)
		})
	m.doneCreating(requestRef, creating)
	m.finishStream(requestRef, target, err)
	if err != nil {
		m.log.Warn("reply stream failed", "conversation", requestRef.String(), "message_id", target, "error", err)
	}
	if title != "" {
		// A failed rename is logged and the list refreshed.
		_ = m.renameRemote(ctx, named, title)
	}
	return err
}

// reconcile repoints every local reference from the ref a request was sent
// with to the durable id the relay answered with. It returns a title the user
// gave the conversation before it was named, which still has to be sent.
func (m *Manager) reconcile(requestRef ConversationRef, conversationID string) string {
	if conversationID == "" {
		return ""
	}

	m.mu.Lock()
	th := m.thread(requestRef)
	if th == nil || th.ref.value == conversationID {
		m.mu.Unlock()
		return ""
	}
	old := th.ref
	durable := Durable(conversationID)

	delete(m.threads, old.value)
	th.ref = durable
	m.threads[conversationID] = th
	m.aliases[old.value] = conversationID
	m.skipFetch[conversationID] = true
	title := m.pendingTitles[old.value]
	delete(m.pendingTitles, old.value)

	out := make([]Summary, 0, len(m.summaries))
	seen := false
	for _, s := range m.summaries {
		if s.Ref == old || s.Ref == durable {
			if seen {
				continue
			}
			s.Ref = durable
			seen = true
		}
		out = append(out, s)
	}
	m.summaries = out
	if m.active == old {
		m.active = durable
	}

	rated := map[string]domain.Rating{}
	for _, msg := range th.messages {
		if msg.Rating != domain.RatingUnset {
			rated[msg.ID] = msg.Rating
		}
	}
	m.mu.Unlock()

	for id, r := range rated {
		m.saveRating(conversationID, id, r)
	}
	return title
}

func (m *Manager) doneCreating(ref ConversationRef, ch chan struct{}) {
	if ch == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if th := m.thread(ref); th != nil && th.creating == ch {
		th.creating = nil
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (m *Manager) appendFragment(ref ConversationRef, messageID, fragment string) {
	m.mu.Lock()
	th := m.thread(ref)
	i := th.find(messageID)
	if i >= 0 {
		th.messages[i].Content += fragment
	}
	m.mu.Unlock()

	if i >= 0 && m.onFragment != nil {
		m.onFragment(messageID, fragment)
	}
}

func (m *Manager) finishStream(ref ConversationRef, messageID string, streamErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	th := m.thread(ref)
	if th == nil {
		return
	}
	if th.pending == messageID {
		th.pending = ""
	}
	i := th.find(messageID)
	if i < 0 {
		return
	}
	th.messages[i].Pending = false
	if streamErr != nil {
		th.messages[i].Content += ErrorMarker
		return
	}

	if j := m.summaryIndex(th.ref); j >= 0 {
		s := m.summaries[j]
		s.UpdatedAt = m.now()
		s.MessageCount = len(th.messages)
		m.summaries = append(m.summaries[:j], m.summaries[j+1:]...)
		m.summaries = append([]Summary{s}, m.summaries...)
	}
}

func (m *Manager) refreshAfterFailure(ctx context.Context) {
	if err := m.Refresh(ctx); err != nil {
		m.log.Warn("failed to refresh conversation list", "error", err)
	}
}

func (m *Manager) loadRatings(conversationID string) map[string]domain.Rating {
	if m.ratings == nil {
		return map[string]domain.Rating{}
	}
	ratings, err := m.ratings.Load(conversationID)
	if err != nil {
		m.log.Warn("failed to load ratings", "conversation_id", conversationID, "error", err)
		return map[string]domain.Rating{}
	}
	return ratings
}

func (m *Manager) saveRating(conversationID, messageID string, rating domain.Rating) {
	if m.ratings == nil {
		return
	}
	if err := m.ratings.Save(conversationID, messageID, rating); err != nil {
		m.log.Warn("failed to save rating", "conversation_id", conversationID, "message_id", messageID, "error", err)
	}
}

// The helpers below expect m.mu to be held.

func (m *Manager) canonical(ref ConversationRef) ConversationRef {
	for i := 0; i < 8; i++ {
		id, ok := m.aliases[ref.value]
		if !ok {
			break
		}
		ref = Durable(id)
	}
	return ref
}

func (m *Manager) thread(ref ConversationRef) *thread {
	if ref.IsZero() {
		return nil
	}
	return m.threads[m.canonical(ref).value]
}

// activeThread returns the selected conversation's state, creating an empty one
// for a selection that has not been loaded.
func (m *Manager) activeThread() *thread {
	if m.active.IsZero() {
		return nil
	}
	th := m.threads[m.active.value]
	if th == nil {
		th = &thread{ref: m.active}
		m.threads[m.active.value] = th
	}
	return th
}

func (m *Manager) summaryIndex(ref ConversationRef) int {
	for i, s := range m.summaries {
		if s.Ref == ref {
			return i
		}
	}
	return -1
}

func (th *thread) find(messageID string) int {
	if th == nil {
		return -1
	}
	for i, msg := range th.messages {
		if msg.ID == messageID {
			return i
		}
	}
	return -1
}

func toTurns(messages []Message) []domain.Turn {
	turns := make([]domain.Turn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, domain.Turn{ID: msg.ID, Role: msg.Role, Content: msg.Content})
	}
	return turns
}
