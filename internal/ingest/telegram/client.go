// Package telegram is the C3 chat-channel downloader: a Client that owns a
// single long-lived gotd/td MTProto session, and a chat_download job
// handler that lists and pulls media off a channel through it. Credential
// acquisition (API id/hash provisioning, OTP login, session bootstrap) is an
// external collaborator's concern; this package only ever opens a session
// from an already-provisioned session file.
package telegram

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"

	"github.com/abdul-hamid-achik/media-vault/internal/apperror"
	"github.com/abdul-hamid-achik/media-vault/internal/logger"
)

// Config is the connection information for the one session Client owns.
type Config struct {
	APIID       int
	APIHash     string
	SessionPath string
}

// MediaItem is one media-bearing message, the listing fetch_group_media
// returned in the original service.
type MediaItem struct {
	MessageID int
	FileName  string
	MimeType  string
	SizeBytes int64
}

// ProgressFunc reports cumulative bytes read against the declared total
// size (0 if unknown) while a download runs.
type ProgressFunc func(read, total int64)

type fetchMediaRequest struct {
	ctx      context.Context
	groupID  string
	resultCh chan fetchMediaResult
}

type fetchMediaResult struct {
	items []MediaItem
	err   error
}

type downloadRequest struct {
	ctx       context.Context
	groupID   string
	messageID int
	destPath  string
	progress  ProgressFunc
	resultCh  chan downloadResult
}

type downloadResult struct {
	sizeBytes int64
	mimeType  string
	err       error
}

// Client dispatches fetch/download requests onto one goroutine that owns
// the MTProto connection for as long as the process runs. Callers never
// construct their own gotd/td client; they send a request over a channel
// and block on its result, so the session itself is never shared or
// recreated per request.
type Client struct {
	requests chan any
	stopped  chan struct{}
}

// NewClient starts the session goroutine and blocks until the underlying
// gotd/td client has connected or ctx is done, whichever comes first.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{
		requests: make(chan any, 64),
		stopped:  make(chan struct{}),
	}

	raw := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionPath},
	})

	ready := make(chan error, 1)
	go c.run(ctx, raw, ready)

	select {
	case err := <-ready:
		if err != nil {
			return nil, err
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) run(ctx context.Context, raw *telegram.Client, ready chan<- error) {
	log := logger.FromContext(ctx)
	defer close(c.stopped)

	err := raw.Run(ctx, func(ctx context.Context) error {
		api := raw.API()
		mgr := peers.NewManager(api, peers.Options{})
		dl := downloader.NewDownloader()
		ready <- nil

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case req := <-c.requests:
				c.dispatch(ctx, api, mgr, dl, req)
			}
		}
	})
	if err != nil && ctx.Err() == nil {
		select {
		case ready <- err:
		default:
		}
		log.Error("telegram session ended", "error", err)
	}
}

func (c *Client) dispatch(ctx context.Context, api *tg.Client, mgr *peers.Manager, dl *downloader.Downloader, req any) {
	switch r := req.(type) {
	case *fetchMediaRequest:
		items, err := fetchMedia(r.ctx, api, mgr, r.groupID)
		r.resultCh <- fetchMediaResult{items: items, err: err}
	case *downloadRequest:
		size, mime, err := downloadOne(r.ctx, api, mgr, dl, r.groupID, r.messageID, r.destPath, r.progress)
		r.resultCh <- downloadResult{sizeBytes: size, mimeType: mime, err: err}
	}
}

// FetchMedia lists every media-bearing message currently in groupID, the
// equivalent of the original fetch_group_media listing call.
func (c *Client) FetchMedia(ctx context.Context, groupID string) ([]MediaItem, error) {
	resultCh := make(chan fetchMediaResult, 1)
	req := &fetchMediaRequest{ctx: ctx, groupID: groupID, resultCh: resultCh}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-resultCh:
		return res.items, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Download pulls one message's media to destPath, invoking progress as
// bytes arrive. Cancelling ctx aborts the in-flight transfer.
func (c *Client) Download(ctx context.Context, groupID string, messageID int, destPath string, progress ProgressFunc) (sizeBytes int64, mimeType string, err error) {
	resultCh := make(chan downloadResult, 1)
	req := &downloadRequest{ctx: ctx, groupID: groupID, messageID: messageID, destPath: destPath, progress: progress, resultCh: resultCh}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return 0, "", ctx.Err()
	}
	select {
	case res := <-resultCh:
		return res.sizeBytes, res.mimeType, res.err
	case <-ctx.Done():
		return 0, "", ctx.Err()
	}
}

func fetchMedia(ctx context.Context, api *tg.Client, mgr *peers.Manager, groupID string) ([]MediaItem, error) {
	channel, err := mgr.ResolveChannel(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", apperror.ErrChannelUnavailable, groupID, err)
	}

	history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  channel.InputPeer(),
		Limit: 200,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: history: %v", apperror.ErrChannelUnavailable, err)
	}

	messages, err := messagesOf(history)
	if err != nil {
		return nil, err
	}

	items := make([]MediaItem, 0, len(messages))
	for _, mc := range messages {
		m, ok := mc.(*tg.Message)
		if !ok {
			continue
		}
		item, ok := mediaItemFromMessage(m)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func downloadOne(ctx context.Context, api *tg.Client, mgr *peers.Manager, dl *downloader.Downloader, groupID string, messageID int, destPath string, progress ProgressFunc) (int64, string, error) {
	channel, err := mgr.ResolveChannel(ctx, groupID)
	if err != nil {
		return 0, "", fmt.Errorf("%w: resolve %s: %v", apperror.ErrChannelUnavailable, groupID, err)
	}

	history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     channel.InputPeer(),
		OffsetID: messageID + 1,
		Limit:    1,
	})
	if err != nil {
		return 0, "", fmt.Errorf("%w: history: %v", apperror.ErrChannelUnavailable, err)
	}

	messages, err := messagesOf(history)
	if err != nil {
		return 0, "", err
	}
	if len(messages) == 0 {
		return 0, "", fmt.Errorf("message %d not found in %s", messageID, groupID)
	}

	m, ok := messages[0].(*tg.Message)
	if !ok || m.ID != messageID {
		return 0, "", fmt.Errorf("message %d not found in %s", messageID, groupID)
	}

	doc, mime, size, err := documentOf(m)
	if err != nil {
		return 0, "", err
	}

	f, err := os.Create(destPath)
	if err != nil {
		return 0, "", fmt.Errorf("create %s: %w", destPath, err)
	}
	defer f.Close()

	var out io.Writer = f
	if progress != nil {
		out = &progressWriter{w: f, total: size, progress: progress}
	}

	if _, err := dl.Download(api, doc.AsInputDocumentFileLocation()).Stream(ctx, out); err != nil {
		return 0, "", fmt.Errorf("download message %d: %w", messageID, err)
	}

	return size, mime, nil
}

func messagesOf(history tg.MessagesMessagesClass) ([]tg.MessageClass, error) {
	switch h := history.(type) {
	case *tg.MessagesChannelMessages:
		return h.Messages, nil
	case *tg.MessagesMessages:
		return h.Messages, nil
	case *tg.MessagesMessagesSlice:
		return h.Messages, nil
	default:
		return nil, fmt.Errorf("unexpected history response type %T", history)
	}
}

func mediaItemFromMessage(m *tg.Message) (MediaItem, bool) {
	doc, mime, size, err := documentOf(m)
	if err != nil {
		return MediaItem{}, false
	}
	return MediaItem{
		MessageID: m.ID,
		FileName:  NormalizeName(documentFileName(doc)),
		MimeType:  mime,
		SizeBytes: size,
	}, true
}

func documentOf(m *tg.Message) (*tg.Document, string, int64, error) {
	media, ok := m.Media.(*tg.MessageMediaDocument)
	if !ok {
		return nil, "", 0, fmt.Errorf("message %d carries no document media", m.ID)
	}
	doc, ok := media.Document.(*tg.Document)
	if !ok {
		return nil, "", 0, fmt.Errorf("message %d document is unavailable", m.ID)
	}
	return doc, doc.MimeType, doc.Size, nil
}

func documentFileName(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if fn, ok := attr.(*tg.DocumentAttributeFilename); ok {
			return fn.FileName
		}
	}
	return fmt.Sprintf("file_%d", doc.ID)
}

// progressWriter reports cumulative bytes written against a known total,
// the shape Download's caller needs to feed pipeline.Controller.RecordBytes.
type progressWriter struct {
	w        io.Writer
	total    int64
	read     int64
	progress ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.read += int64(n)
	p.progress(p.read, p.total)
	return n, err
}
