package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/floorservicemsk/dealerchat/internal/cache"
	"github.com/floorservicemsk/dealerchat/internal/catalog"
	"github.com/floorservicemsk/dealerchat/internal/knowledge"
	"github.com/floorservicemsk/dealerchat/internal/llm"
	"github.com/floorservicemsk/dealerchat/internal/queue"
	"github.com/floorservicemsk/dealerchat/internal/routing"
	"github.com/floorservicemsk/dealerchat/internal/semcache"
	"github.com/floorservicemsk/dealerchat/internal/textutil"
)

// fallbackMessage is the safe answer for unexpected failures. The chat
// endpoint never shows a raw error to a dealer.
const fallbackMessage = "Извините, произошла ошибка при обработке вашего запроса. Попробуйте ещё раз."

// RateLimitError maps to HTTP 429 with a retry hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// CapacityError maps to HTTP 503 with an estimated wait.
type CapacityError struct {
	EstimatedWait time.Duration
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("request queue is full, estimated wait %s", e.EstimatedWait)
}

// RateLimiter gates inbound messages per client.
type RateLimiter interface {
	Check(clientID string) (allowed bool, retryAfter time.Duration)
}

// HistoryStore persists the conversation. Failures are logged, never
// surfaced to the dealer.
type HistoryStore interface {
	AppendMessage(ctx context.Context, sessionID, role, content string, attachments []Attachment) error
}

// HistoryMessage is one prior turn supplied by the client.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is an inbound chat message.
type Request struct {
	Message   string
	SessionID string
	History   []HistoryMessage
}

// Response is the assembled answer. Content is either markdown or an
// encoded structured payload; DecodePayload tells them apart.
type Response struct {
	Content     string
	Attachments []Attachment
	Cached      bool
}

// Models binds routing tiers to concrete model identifiers.
type Models struct {
	Fast     string
	Standard string
	Advanced string
}

// Config holds orchestrator tuning.
type Config struct {
	Models         Models
	RequestTimeout time.Duration
	StreamTimeout  time.Duration
	SimilarLimit   int
}

// Orchestrator runs the request-handling pipeline: gates, caches,
// article resolution, knowledge selection, queued completion.
type Orchestrator struct {
	logger    zerolog.Logger
	cfg       Config
	semCache  *semcache.Cache
	catalog   *catalog.Service
	kb        knowledge.Provider
	queue     *queue.Queue
	completer llm.Completer
	limiter   RateLimiter
	history   HistoryStore
}

// New creates an orchestrator. limiter and history may be nil.
func New(
	logger zerolog.Logger,
	cfg Config,
	semCache *semcache.Cache,
	catalogSvc *catalog.Service,
	kb knowledge.Provider,
	q *queue.Queue,
	completer llm.Completer,
	limiter RateLimiter,
	history HistoryStore,
) *Orchestrator {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 90 * time.Second
	}
	if cfg.SimilarLimit <= 0 {
		cfg.SimilarLimit = 10
	}
	return &Orchestrator{
		logger:    logger,
		cfg:       cfg,
		semCache:  semCache,
		catalog:   catalogSvc,
		kb:        kb,
		queue:     q,
		completer: completer,
		limiter:   limiter,
		history:   history,
	}
}

// Handle processes one message through the full pipeline and returns
// the complete answer.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	return o.handle(ctx, req, nil)
}

// HandleStream processes one message, delivering LLM output through
// chunks as it arrives. Short-circuit answers (instant, cached,
// article, download) are delivered as a single chunk. Client
// cancellation is not an error: the partial content received so far
// becomes the final response and is persisted.
func (o *Orchestrator) HandleStream(ctx context.Context, req Request, chunks chan<- string) (Response, error) {
	return o.handle(ctx, req, chunks)
}

func (o *Orchestrator) handle(ctx context.Context, req Request, chunks chan<- string) (Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Response{}, errors.New("empty message")
	}
	log := o.logger.With().Str("sessionId", req.SessionID).Logger()

	// Stage 1: rate gate.
	if o.limiter != nil && req.SessionID != "" {
		if allowed, retryAfter := o.limiter.Check(req.SessionID); !allowed {
			return Response{}, &RateLimitError{RetryAfter: retryAfter}
		}
	}

	// Stage 2: capacity gate.
	if !o.queue.HasCapacity() {
		return Response{}, &CapacityError{EstimatedWait: o.queue.EstimatedWait()}
	}

	// Stage 3: instant responses skip every other stage.
	if reply, ok := routing.InstantResponse(message); ok {
		log.Debug().Msg("instant response")
		return o.deliver(ctx, req, Response{Content: reply}, chunks)
	}

	// Stage 4: semantic cache.
	if entry := o.semCache.Get(message); entry != nil {
		log.Debug().Str("cachedQuestion", entry.Question).Msg("semantic cache hit")
		return o.deliver(ctx, req, Response{Content: entry.Response, Cached: true}, chunks)
	}

	// Stage 5: routing picks the model tier for any LLM work below.
	decision := routing.AnalyzeQuestion(message)
	log.Debug().
		Str("reason", decision.Reason).
		Str("model", string(decision.Model)).
		Bool("useAI", decision.UseAI).
		Msg("question routed")

	// Stage 6: article pipeline.
	code := catalog.ExtractArticleCode(message)
	kbIntent := catalog.IsKnowledgeBaseRequest(message)
	var productContext *ProductCard

	if code != "" {
		if !kbIntent {
			if resp, ok := o.cachedArticleResponse(ctx, code); ok {
				return o.deliver(ctx, req, resp, chunks)
			}
		}

		index, items, err := o.fetchSources(ctx, true, kbIntent)
		if err != nil {
			log.Error().Err(err).Msg("source fetch failed")
			return o.deliver(ctx, req, Response{Content: fallbackMessage}, chunks)
		}

		product := catalog.FindExact(index, code)
		switch {
		case product != nil && !kbIntent:
			resp, err := o.productResponse(ctx, code, *product)
			if err != nil {
				log.Error().Err(err).Msg("product response failed")
				return o.deliver(ctx, req, Response{Content: fallbackMessage}, chunks)
			}
			return o.deliver(ctx, req, resp, chunks)

		case product != nil && kbIntent:
			card := newProductCard(*product)
			productContext = &card
			return o.knowledgePath(ctx, req, message, decision, items, productContext, chunks)

		default:
			resp := o.missResponse(ctx, index, code, message)
			return o.deliver(ctx, req, resp, chunks)
		}
	}

	// Stage 7 onward: knowledge path.
	_, items, err := o.fetchSources(ctx, false, true)
	if err != nil {
		log.Error().Err(err).Msg("knowledge fetch failed")
		return o.deliver(ctx, req, Response{Content: fallbackMessage}, chunks)
	}
	return o.knowledgePath(ctx, req, message, decision, items, nil, chunks)
}

// fetchSources loads the product index and the knowledge snapshot,
// concurrently when both are needed.
func (o *Orchestrator) fetchSources(ctx context.Context, needIndex, needItems bool) (catalog.Index, []knowledge.Item, error) {
	var (
		index catalog.Index
		items []knowledge.Item
	)

	g, gctx := errgroup.WithContext(ctx)
	if needIndex {
		g.Go(func() error {
			var err error
			index, err = o.catalog.Index(gctx)
			return err
		})
	}
	if needItems {
		g.Go(func() error {
			var err error
			items, err = o.kb.Items(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return index, items, nil
}

type cachedArticle struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

func (o *Orchestrator) cachedArticleResponse(ctx context.Context, code string) (Response, bool) {
	data, err := o.catalog.CachedArticle(ctx, code)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			o.logger.Warn().Err(err).Str("code", code).Msg("article cache lookup failed")
		}
		return Response{}, false
	}

	var stored cachedArticle
	if err := json.Unmarshal(data, &stored); err != nil {
		return Response{}, false
	}
	return Response{Content: stored.Content, Attachments: stored.Attachments, Cached: true}, true
}

func newProductCard(p catalog.Product) ProductCard {
	card := ProductCard{
		Name:        p.Name,
		VendorCode:  p.VendorCode,
		Description: p.Description,
		Picture:     p.Picture,
		Price:       catalog.FormatPrice(p.Price),
		Params:      p.Params,
	}
	if p.Stock != "" {
		card.Stock = textutil.ParseStock(p.Stock).DisplayText
	}
	return card
}

// productResponse builds and caches the structured product card.
func (o *Orchestrator) productResponse(ctx context.Context, code string, product catalog.Product) (Response, error) {
	content, err := NewProductInfoPayload(newProductCard(product)).Encode()
	if err != nil {
		return Response{}, err
	}

	var attachments []Attachment
	if product.Picture != "" {
		attachments = append(attachments, Attachment{Type: "image", URL: product.Picture, Name: product.Name})
	}

	o.storeArticle(ctx, code, content, attachments)
	return Response{Content: content, Attachments: attachments}, nil
}

// missResponse handles an unknown code: similar suggestions or the
// fixed not-found text. Both are normal answers, not errors. When the
// question names a color, suggestions closest to it come first.
func (o *Orchestrator) missResponse(ctx context.Context, index catalog.Index, code, message string) Response {
	similar := catalog.FindSimilar(index, code, o.cfg.SimilarLimit)
	var content string
	if len(similar) > 0 {
		catalog.SortByColor(similar, message)
		content = catalog.SuggestionMessage(code, similar)
	} else {
		content = catalog.NotFoundMessage(code)
	}
	o.storeArticle(ctx, code, content, nil)
	return Response{Content: content}
}

func (o *Orchestrator) storeArticle(ctx context.Context, code, content string, attachments []Attachment) {
	data, err := json.Marshal(cachedArticle{Content: content, Attachments: attachments})
	if err != nil {
		return
	}
	if err := o.catalog.StoreArticle(ctx, code, data); err != nil {
		o.logger.Warn().Err(err).Str("code", code).Msg("article cache store failed")
	}
}

// knowledgePath runs stages 7 through 11: relevance selection, keyword
// post-filters, the download short-circuit and the queued completion.
func (o *Orchestrator) knowledgePath(
	ctx context.Context,
	req Request,
	message string,
	decision routing.Decision,
	items []knowledge.Item,
	productContext *ProductCard,
	chunks chan<- string,
) (Response, error) {
	log := o.logger.With().Str("sessionId", req.SessionID).Logger()

	// Stage 10 first: with an empty knowledge base the model asks a
	// narrowing question instead of guessing.
	if len(items) == 0 {
		return o.completeAndDeliver(ctx, req, message, decision, clarificationSystemPrompt, message, nil, chunks)
	}

	// Stage 7: relevance selection on the fast tier.
	selected, err := o.selectRelevant(ctx, message, items)
	if err != nil {
		if resp, handled := o.gateError(err); handled {
			return resp, err
		}
		log.Error().Err(err).Msg("relevance selection failed")
		return o.deliver(ctx, req, Response{Content: fallbackMessage}, chunks)
	}
	selected = postFilterItems(message, selected)

	if len(selected) == 0 {
		return o.completeAndDeliver(ctx, req, message, decision, clarificationSystemPrompt, message, nil, chunks)
	}

	// Stage 8: download short-circuit.
	if resp, ok := o.downloadResponse(message, selected); ok {
		log.Debug().Int("links", len(selected)).Msg("download short-circuit")
		return o.deliver(ctx, req, resp, chunks)
	}

	// Stage 9: grounded completion through the queue.
	prompt := buildAnswerPrompt(message, selected, productContext)
	return o.completeAndDeliver(ctx, req, message, decision, answerSystemPrompt, prompt, selected, chunks)
}

// selectRelevant asks the model which items answer the question and
// maps the returned titles back onto the snapshot.
func (o *Orchestrator) selectRelevant(ctx context.Context, message string, items []knowledge.Item) ([]knowledge.Item, error) {
	answer, err := o.queue.Enqueue(ctx, func(ctx context.Context) (string, error) {
		return o.completer.Complete(ctx, llm.Request{
			Model:  o.cfg.Models.Fast,
			System: relevanceSystemPrompt,
			Messages: []llm.Message{
				{Role: "user", Content: buildRelevancePrompt(message, items)},
			},
		})
	}, queue.Options{Priority: 2, Timeout: o.cfg.RequestTimeout})
	if err != nil {
		return nil, err
	}
	return selectByTitles(items, parseSelectedTitles(answer)), nil
}

const maxAutoDownloadLinks = 3

// downloadResponse short-circuits to a structured download payload
// when the dealer explicitly asks for a file, or when every relevant
// item is downloadable and the list is short.
func (o *Orchestrator) downloadResponse(message string, items []knowledge.Item) (Response, bool) {
	var downloadable []knowledge.Item
	for _, item := range items {
		if knowledge.IsDownloadable(item) {
			downloadable = append(downloadable, item)
		}
	}
	if len(downloadable) == 0 {
		return Response{}, false
	}

	allDownloadable := len(downloadable) == len(items)
	if !wantsDownload(message) && !(allDownloadable && len(items) <= maxAutoDownloadLinks) {
		return Response{}, false
	}

	links := make([]DownloadLink, 0, len(downloadable))
	attachments := make([]Attachment, 0, len(downloadable))
	for _, item := range downloadable {
		url := item.FileURL
		if url == "" {
			url = item.URL
		}
		links = append(links, DownloadLink{Title: item.Title, URL: url, Description: item.Description})
		attachments = append(attachments, Attachment{Type: "file", URL: url, Name: item.Title})
	}

	var payload Payload
	if len(links) == 1 {
		payload = NewDownloadPayload(links[0])
	} else {
		payload = NewMultiDownloadPayload(links)
	}

	content, err := payload.Encode()
	if err != nil {
		return Response{}, false
	}
	return Response{Content: content, Attachments: attachments}, true
}

// completeAndDeliver runs the final completion through the queue,
// streaming when chunks is non-nil, and populates the semantic cache
// on full success.
func (o *Orchestrator) completeAndDeliver(
	ctx context.Context,
	req Request,
	message string,
	decision routing.Decision,
	system, prompt string,
	contextItems []knowledge.Item,
	chunks chan<- string,
) (Response, error) {
	log := o.logger.With().Str("sessionId", req.SessionID).Logger()

	llmReq := llm.Request{
		Model:    o.modelFor(decision.Model),
		System:   system,
		Messages: o.promptMessages(req.History, prompt),
	}

	var (
		partialMu sync.Mutex
		partial   strings.Builder
	)

	timeout := o.cfg.RequestTimeout
	if chunks != nil {
		timeout = o.cfg.StreamTimeout
	}

	content, err := o.queue.Enqueue(ctx, func(taskCtx context.Context) (string, error) {
		if chunks == nil {
			return o.completer.Complete(taskCtx, llmReq)
		}

		inner := make(chan string, 16)
		var streamErr error
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer close(inner)
			streamErr = o.completer.Stream(taskCtx, llmReq, inner)
		}()

		for chunk := range inner {
			partialMu.Lock()
			partial.WriteString(chunk)
			partialMu.Unlock()
			select {
			case chunks <- chunk:
			case <-ctx.Done():
			}
		}
		<-done
		return partialText(&partialMu, &partial), streamErr
	}, queue.Options{Priority: priorityFor(decision.Model), Timeout: timeout})

	if err != nil {
		// Client cancellation on the streaming path is a normal
		// outcome: keep whatever arrived.
		if chunks != nil && errors.Is(err, context.Canceled) {
			text := partialText(&partialMu, &partial)
			resp := Response{Content: text}
			o.persist(req, resp)
			return resp, nil
		}
		if resp, handled := o.gateError(err); handled {
			return resp, err
		}
		log.Error().Err(err).Msg("completion failed")
		return o.deliver(ctx, req, Response{Content: fallbackMessage}, chunks)
	}

	resp := Response{Content: content}

	// Stage 11: caches are populated only after full success.
	o.semCache.Set(message, content, approxTokens(content))
	o.persist(req, resp)

	if chunks == nil {
		return resp, nil
	}
	// Streaming already delivered the content chunk by chunk.
	return resp, nil
}

func partialText(mu *sync.Mutex, b *strings.Builder) string {
	mu.Lock()
	defer mu.Unlock()
	return b.String()
}

// gateError recognizes the typed conditions the HTTP layer maps to
// distinct statuses. Everything else falls back to the safe message.
func (o *Orchestrator) gateError(err error) (Response, bool) {
	if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrRequestTimeout) {
		return Response{}, true
	}
	var rateErr *RateLimitError
	var capErr *CapacityError
	if errors.As(err, &rateErr) || errors.As(err, &capErr) {
		return Response{}, true
	}
	return Response{}, false
}

// deliver pushes a short-circuit answer through the stream channel
// when streaming, persists it, and returns it. Cache-served answers are
// persisted too: the transcript records every turn, not just the ones
// that cost an LLM call.
func (o *Orchestrator) deliver(ctx context.Context, req Request, resp Response, chunks chan<- string) (Response, error) {
	if chunks != nil && resp.Content != "" {
		select {
		case chunks <- resp.Content:
		case <-ctx.Done():
		}
	}
	o.persist(req, resp)
	return resp, nil
}

// persist appends the exchange to history. Best effort only.
func (o *Orchestrator) persist(req Request, resp Response) {
	if o.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.history.AppendMessage(ctx, req.SessionID, "user", req.Message, nil); err != nil {
		o.logger.Warn().Err(err).Msg("history append failed")
		return
	}
	if err := o.history.AppendMessage(ctx, req.SessionID, "assistant", resp.Content, resp.Attachments); err != nil {
		o.logger.Warn().Err(err).Msg("history append failed")
	}
}

func (o *Orchestrator) promptMessages(history []HistoryMessage, prompt string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(messages, llm.Message{Role: "user", Content: prompt})
}

func (o *Orchestrator) modelFor(tier routing.ModelTier) string {
	switch tier {
	case routing.ModelFast:
		return o.cfg.Models.Fast
	case routing.ModelAdvanced:
		return o.cfg.Models.Advanced
	default:
		return o.cfg.Models.Standard
	}
}

// priorityFor lets cheap fast-tier questions jump ahead of long
// analytical ones when the queue backs up.
func priorityFor(tier routing.ModelTier) int {
	switch tier {
	case routing.ModelFast:
		return 2
	case routing.ModelStandard:
		return 1
	default:
		return 0
	}
}

func approxTokens(s string) int {
	return len([]rune(s)) / 4
}
