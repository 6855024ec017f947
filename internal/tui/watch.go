package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/dicklesworthstone/dcg/internal/tracker"
	"github.com/dicklesworthstone/dcg/internal/tui/components"
	"github.com/dicklesworthstone/dcg/internal/tui/styles"
)

// WatchOptions configures `dcg watch`.
type WatchOptions struct {
	HistoryPath string // defaults to tracker's default history.jsonl location
	MaxRows     int    // how many most-recent records to keep on screen
}

// Watch tails historyPath for newly appended records and renders them
// live until ctx is cancelled or the user quits. There is no long-lived
// dcg daemon to subscribe to (spec.md §2.1) — history.jsonl is the one
// append-only artifact every invocation already writes to, so tailing it
// with fsnotify is the only way to observe decisions as they happen.
func Watch(ctx context.Context, opts WatchOptions) error {
	if opts.HistoryPath == "" {
		opts.HistoryPath = tracker.New(tracker.Options{}).HistoryPath()
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = 50
	}

	dir := dirOf(opts.HistoryPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	m := newWatchModel(opts)
	p := tea.NewProgram(m)

	go pumpHistoryEvents(ctx, watcher, opts.HistoryPath, p)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err = p.Run()
	return err
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// historyRecordMsg carries one newly observed history.jsonl line into
// the Bubble Tea update loop.
type historyRecordMsg tracker.HistoryRecord

func pumpHistoryEvents(ctx context.Context, watcher *fsnotify.Watcher, path string, p *tea.Program) {
	offset := existingSize(path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Name != path || ev.Op&fsnotify.Write == 0 {
				continue
			}
			records, newOffset := readFrom(path, offset)
			offset = newOffset
			for _, rec := range records {
				p.Send(historyRecordMsg(rec))
			}
		case <-watcher.Errors:
			// A watch error (e.g. the directory was briefly unreadable)
			// isn't fatal to the viewer; the next successful event still
			// reads from the last known offset.
			continue
		}
	}
}

func existingSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func readFrom(path string, offset int64) ([]tracker.HistoryRecord, int64) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return nil, offset
	}

	var records []tracker.HistoryRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	read := offset
	for scanner.Scan() {
		line := scanner.Bytes()
		read += int64(len(line)) + 1
		var rec tracker.HistoryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, read
}

type watchModel struct {
	opts    WatchOptions
	records []tracker.HistoryRecord
}

func newWatchModel(opts WatchOptions) watchModel {
	return watchModel{opts: opts}
}

func (m watchModel) Init() tea.Cmd { return nil }

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case historyRecordMsg:
		m.records = append(m.records, tracker.HistoryRecord(msg))
		if len(m.records) > m.opts.MaxRows {
			m.records = m.records[len(m.records)-m.opts.MaxRows:]
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	s := styles.New()
	var events []components.TimelineEvent
	for _, rec := range m.records {
		events = append(events, components.TimelineEvent{
			Stage:     rec.RuleID,
			Timestamp: rec.Timestamp,
			Outcome:   rec.Decision,
			Details:   "severity=" + rec.Severity + " cwd=" + rec.Cwd,
		})
	}

	header := s.Title.Render("dcg watch") + "  " + s.Dimmed.Render(fmt.Sprintf("tailing %d record(s) · q to quit", len(m.records)))
	if len(events) == 0 {
		return header + "\n\n" + s.Dimmed.Render("waiting for the next decision...")
	}
	tl := components.NewTimeline().AsExpanded()
	tl.Events = events
	return header + "\n\n" + tl.Render()
}
