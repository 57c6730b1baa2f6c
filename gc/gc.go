// Package gc moves attachments that no document references anymore to the vault trash.
package gc

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitrise-io/go-assetpipe/config"
	"github.com/bitrise-io/go-assetpipe/metrics"
	"github.com/bitrise-io/go-assetpipe/reference"
	"github.com/bitrise-io/go-assetpipe/vault"
	"github.com/bitrise-io/go-utils/v2/log"
)

// Result of a sweep.
type Result struct {
	// Deleted lists the trashed files, or in dry-run mode the files that would be trashed.
	Deleted []string
	// Referenced is the size of the reachable set.
	Referenced int
	// Failed lists unreferenced files that could not be trashed.
	Failed []string
}

// Collector ...
type Collector struct {
	store             vault.Store
	attachmentsFolder string
	dryRun            bool
	tracker           metrics.Tracker
	logger            log.Logger
}

// Option customizes a Collector.
type Option func(*Collector)

// WithTracker ...
func WithTracker(tracker metrics.Tracker) Option {
	return func(c *Collector) {
		c.tracker = tracker
	}
}

// New ...
func New(cfg config.Config, store vault.Store, logger log.Logger, opts ...Option) *Collector {
	c := &Collector{
		store:             store,
		attachmentsFolder: strings.Trim(cfg.AttachmentsFolder, "/"),
		dryRun:            cfg.DryRun,
		tracker:           metrics.NewNoop(),
		logger:            logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sweep trashes every file inside an attachments folder, at any depth, that no markdown, kanban
// or canvas document among files references. Unreadable documents contribute no references.
func (c *Collector) Sweep(ctx context.Context, files []vault.File) (Result, error) {
	reachable, err := c.reachable(ctx, files)
	if err != nil {
		return Result{}, err
	}

	result := Result{Referenced: len(reachable)}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !c.inAttachments(f) {
			continue
		}
		if _, ok := reachable[f.ID]; ok {
			continue
		}

		if c.dryRun {
			c.logger.Printf("Would move unused image %s to trash", f.ID)
			result.Deleted = append(result.Deleted, f.ID)
			continue
		}

		c.logger.Printf("Moving unused image %s to trash", f.ID)
		if err := c.store.MoveToTrash(f.ID); err != nil {
			c.logger.Warnf("Failed to trash %s: %s", f.ID, err)
			result.Failed = append(result.Failed, f.ID)
			continue
		}
		c.tracker.AssetTrashed()
		result.Deleted = append(result.Deleted, f.ID)
	}

	if c.dryRun {
		c.logger.Donef("Found %d unused images.", len(result.Deleted))
	} else {
		c.logger.Donef("Moved %d unused images to trash.", len(result.Deleted))
	}
	return result, nil
}

func (c *Collector) reachable(ctx context.Context, files []vault.File) (map[string]struct{}, error) {
	reachable := map[string]struct{}{}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch f.Extension {
		case "md", "kanban":
			text, err := c.store.ReadDocumentText(f.ID)
			if err != nil {
				c.logger.Warnf("Failed to read %s: %s", f.ID, err)
				continue
			}
			c.addText(reachable, text, f.ID)
		case "canvas":
			text, err := c.store.ReadDocumentText(f.ID)
			if err != nil {
				c.logger.Warnf("Failed to read %s: %s", f.ID, err)
				continue
			}
			if err := c.addCanvas(reachable, text, f.ID); err != nil {
				c.logger.Warnf("Error parsing canvas file: %s", err)
			}
		}
	}

	c.logger.Debugf("Found %d referenced files", len(reachable))
	return reachable, nil
}

func (c *Collector) addText(reachable map[string]struct{}, text, source string) {
	for _, ref := range reference.Scan(source, text) {
		if ref.Remote || ref.DecodeErr != nil {
			continue
		}
		c.add(reachable, ref.Path, source)
	}
}

func (c *Collector) addCanvas(reachable map[string]struct{}, text, source string) error {
	canvas, err := ParseCanvas(source, []byte(text))
	if err != nil {
		return err
	}

	for _, node := range canvas.Nodes {
		switch {
		case node.Type == NodeFile && node.File != "":
			c.add(reachable, node.File, source)
		case node.Type == NodeText && node.Text != "":
			c.addText(reachable, node.Text, source)
		}
	}
	return nil
}

func (c *Collector) add(reachable map[string]struct{}, hint, source string) {
	if id, ok := c.store.ResolveLinkTarget(hint, source); ok {
		reachable[id] = struct{}{}
	}
}

// inAttachments reports whether any parent folder path segment sequence equals the attachments folder.
func (c *Collector) inAttachments(f vault.File) bool {
	if c.attachmentsFolder == "" {
		return false
	}
	dir := f.Dir()
	if dir == "" {
		return false
	}
	return strings.Contains("/"+dir+"/", "/"+c.attachmentsFolder+"/")
}

// ParseError means a canvas document is not valid JSON.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
