package protocol

// InputItem is the tagged union of items a client can feed into a turn via
// UserInput/UserTurn.
type InputItem interface {
	inputItem()
	Kind() string
}

// TextInput is plain text typed or pasted by the user.
type TextInput struct {
	Text string `json:"text"`
}

func (TextInput) inputItem()    {}
func (TextInput) Kind() string { return "text" }

// ImageInput is a data-URL or blob-URL image captured from the page
// (e.g. a screenshot taken by the extension).
type ImageInput struct {
	URL string `json:"url"`
}

func (ImageInput) inputItem()    {}
func (ImageInput) Kind() string { return "image" }

// PageContextInput is structured context about the active tab, attached
// automatically by the extension rather than typed by the user.
type PageContextInput struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (PageContextInput) inputItem()    {}
func (PageContextInput) Kind() string { return "page_context" }

// ResponseItem is the tagged union of items exchanged with the model:
// what goes into a Prompt and what comes back from a completed response.
// It is also the unit of conversation history kept by session.History.
type ResponseItem interface {
	responseItem()
	Kind() string
}

// MessageItem is a role-tagged message (system, developer, user, assistant).
type MessageItem struct {
	Role    string        `json:"role"`
	Content []ContentItem `json:"content"`
}

func (MessageItem) responseItem() {}
func (MessageItem) Kind() string  { return "message" }

// ContentItem is one block of a MessageItem's content array.
type ContentItem struct {
	Type string `json:"type"` // "input_text" | "output_text" | "input_image"
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
}

// ReasoningItem carries the model's reasoning summary, opaque to tool code
// but replayed back to the model on the next turn for providers that
// require it.
type ReasoningItem struct {
	Summary   string `json:"summary"`
	EncryptedContent string `json:"encrypted_content,omitempty"`
}

func (ReasoningItem) responseItem() {}
func (ReasoningItem) Kind() string  { return "reasoning" }

// FunctionCallItem is a model-issued tool invocation.
type FunctionCallItem struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON, validated lazily by the tool registry
}

func (FunctionCallItem) responseItem() {}
func (FunctionCallItem) Kind() string  { return "function_call" }

// FunctionCallOutputItem carries a tool's result back to the model on the
// next turn.
type FunctionCallOutputItem struct {
	CallID string `json:"call_id"`
	Output string `json:"output"`
	Success bool  `json:"success"`
}

func (FunctionCallOutputItem) responseItem() {}
func (FunctionCallOutputItem) Kind() string  { return "function_call_output" }

// RolloutItem is the tagged union of everything the rollout recorder may
// persist: a superset of ResponseItem plus session/turn bookkeeping that
// never goes to the model.
type RolloutItem interface {
	rolloutItem()
	Kind() string
}

// ResponseRolloutItem wraps a ResponseItem for persistence.
type ResponseRolloutItem struct {
	Item ResponseItem `json:"item"`
}

func (ResponseRolloutItem) rolloutItem() {}
func (ResponseRolloutItem) Kind() string { return "response_item" }

// EventRolloutItem wraps a terminal EventMsg for persistence (deltas reach
// Recorder.RecordEvent but are not persisted; see rollout.ShouldPersistEvent).
type EventRolloutItem struct {
	Msg EventMsg `json:"msg"`
}

func (EventRolloutItem) rolloutItem() {}
func (EventRolloutItem) Kind() string { return "event_msg" }

// SessionMetaRolloutItem records session-start configuration, written once
// per rollout as the first item.
type SessionMetaRolloutItem struct {
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
}

func (SessionMetaRolloutItem) rolloutItem() {}
func (SessionMetaRolloutItem) Kind() string { return "session_meta" }

// TurnContextRolloutItem records the resolved TurnConfig in effect at the
// start of a turn, so a replayed rollout can reconstruct turn boundaries.
type TurnContextRolloutItem struct {
	Model          string `json:"model"`
	ApprovalPolicy string `json:"approval_policy"`
}

func (TurnContextRolloutItem) rolloutItem() {}
func (TurnContextRolloutItem) Kind() string { return "turn_context" }

// CompactedRolloutItem records that history compaction ran and replaced
// everything before it with a single summary message. It is always
// persisted (never gated on showRawReasoning or any other policy flag),
// so a replay can tell a real compaction boundary apart from a rollout
// that simply never needed one.
type CompactedRolloutItem struct {
	Summary string `json:"summary"`
}

func (CompactedRolloutItem) rolloutItem() {}
func (CompactedRolloutItem) Kind() string { return "compacted" }
