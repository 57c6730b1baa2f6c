// Package pipeline moves images referenced by notes into the object store and rewrites the notes
// to point at the uploaded copies.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bitrise-io/go-assetpipe/config"
	"github.com/bitrise-io/go-assetpipe/contentaddr"
	"github.com/bitrise-io/go-assetpipe/metrics"
	"github.com/bitrise-io/go-assetpipe/network/objectstore"
	"github.com/bitrise-io/go-assetpipe/reference"
	"github.com/bitrise-io/go-assetpipe/report"
	"github.com/bitrise-io/go-assetpipe/transcode"
	"github.com/bitrise-io/go-assetpipe/vault"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ProcessingError is one recorded per-reference or per-document failure.
type ProcessingError = report.ProcessingError

// Fetcher downloads remote images.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Transcoder re-encodes raw image bytes.
type Transcoder interface {
	Transcode(raw []byte, quality float64) ([]byte, error)
}

// ContentResult is the outcome of processing one text.
type ContentResult struct {
	Content         string
	Modified        bool
	ImagesProcessed int
	Errors          []ProcessingError
}

// Processor runs the pipeline for one configuration. It is safe for concurrent use.
type Processor struct {
	cfg        config.Config
	store      vault.Store
	fetcher    Fetcher
	transcoder Transcoder
	uploader   objectstore.Uploader
	addresser  contentaddr.Addresser
	tracker    metrics.Tracker
	logger     log.Logger
	now        func() time.Time
	newRunID   func() string
}

// Option customizes a Processor.
type Option func(*Processor)

// WithTracker ...
func WithTracker(tracker metrics.Tracker) Option {
	return func(p *Processor) {
		p.tracker = tracker
	}
}

// WithClock replaces time.Now for error timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// New ...
func New(cfg config.Config, store vault.Store, fetcher Fetcher, transcoder Transcoder, uploader objectstore.Uploader, logger log.Logger, opts ...Option) *Processor {
	p := &Processor{
		cfg:        cfg,
		store:      store,
		fetcher:    fetcher,
		transcoder: transcoder,
		uploader:   uploader,
		addresser:  contentaddr.Default(),
		tracker:    metrics.NewNoop(),
		logger:     logger,
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessContent uploads every reference of content and returns the rewritten text. A failing
// reference is recorded and left as written; the other references are still processed.
func (p *Processor) ProcessContent(ctx context.Context, content, sourcePath string) ContentResult {
	refs := reference.Scan(sourcePath, content)
	if len(refs) == 0 {
		return ContentResult{Content: content}
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Start > refs[j].Start })

	var replacements []reference.Replacement
	var errs []ProcessingError
	for _, ref := range refs {
		if ctx.Err() != nil {
			errs = append(errs, p.newError(sourcePath, ref.RawPath, ctx.Err()))
			break
		}
		if ref.AlreadyMigrated(p.cfg.Store.PublicDomain) {
			p.tracker.ImageSkipped()
			continue
		}

		url, err := p.ProcessImage(ctx, ref)
		if err != nil {
			p.logger.Warnf("Failed to process image %s in %s: %s", ref.RawPath, sourcePath, err)
			p.tracker.ImageFailed(FailureReason(err))
			errs = append(errs, p.newError(sourcePath, ref.RawPath, err))
			continue
		}

		replacements = append(replacements, reference.Replacement{
			Start: ref.Start,
			End:   ref.End,
			Text:  reference.Markdown(url),
		})
	}

	return ContentResult{
		Content:         reference.Rewrite(content, replacements),
		Modified:        len(replacements) > 0,
		ImagesProcessed: len(replacements),
		Errors:          errs,
	}
}

// ProcessImage loads, transcodes and uploads the image of ref and returns its public URL.
// In dry-run mode nothing is uploaded and the URL the upload would produce is returned.
func (p *Processor) ProcessImage(ctx context.Context, ref reference.Reference) (string, error) {
	raw, err := p.load(ctx, ref)
	if err != nil {
		return "", err
	}

	encoded, err := p.transcoder.Transcode(raw, p.cfg.Quality)
	if err != nil {
		return "", err
	}
	req := p.addresser.Request(encoded, transcode.ContentType)

	if p.cfg.DryRun {
		return objectstore.PublicURL(p.cfg.Store.PublicDomain, req.Key), nil
	}

	start := time.Now()
	result, err := p.uploader.Store(ctx, req)
	if err != nil {
		return "", err
	}
	if result.Deduplicated {
		p.tracker.ImageDeduplicated()
	} else {
		p.tracker.ImageUploaded(len(req.Payload), time.Since(start))
	}

	p.logger.Debugf("%s -> %s", ref.RawPath, result.URL)
	return result.URL, nil
}

func (p *Processor) load(ctx context.Context, ref reference.Reference) ([]byte, error) {
	if ref.DecodeErr != nil {
		return nil, ref.DecodeErr
	}

	if ref.Remote {
		p.logger.Debugf("Processing remote image: %s", ref.Path)
		raw, err := p.fetcher.Fetch(ctx, ref.Path)
		if err != nil {
			return nil, fmt.Errorf("fetch remote image: %w", err)
		}
		return raw, nil
	}

	id, err := ref.Resolve(p.store)
	if err != nil {
		return nil, err
	}
	return p.store.ReadBinary(id)
}

// ProcessDocument processes one stored document and writes it back when it changed.
// The returned error covers reading and writing the document; reference failures are in the result.
func (p *Processor) ProcessDocument(ctx context.Context, id string) (ContentResult, error) {
	content, err := p.store.ReadDocumentText(id)
	if err != nil {
		return ContentResult{}, err
	}

	result := p.ProcessContent(ctx, content, id)
	if result.Modified {
		if p.cfg.DryRun {
			p.logDiff(id, content, result.Content)
		} else if err := p.store.WriteDocumentText(id, result.Content); err != nil {
			return result, fmt.Errorf("write %s: %w", id, err)
		}
	}

	p.tracker.DocumentProcessed(result.Modified)
	return result, nil
}

func (p *Processor) logDiff(id, before, after string) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	p.logger.Infof("Would rewrite %s:", id)
	p.logger.Printf("%s", dmp.DiffPrettyText(diffs))
}

func (p *Processor) newError(file, imagePath string, err error) ProcessingError {
	return ProcessingError{
		File:      file,
		ImagePath: imagePath,
		Message:   err.Error(),
		Timestamp: p.now(),
	}
}
