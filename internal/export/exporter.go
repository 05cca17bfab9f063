package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xaenox/edu-assistant/internal/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// dateLayout formats the UTC date in export file names.
const dateLayout = "2006-01-02"

// Format selects the file type of a snapshot export.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
)

// Counter hands out dialog export numbers.
type Counter interface {
	NextExportNumber(ctx context.Context) (int, error)
}

// SnapshotSource returns a conversation's export snapshot.
type SnapshotSource interface {
	ExportConversation(ctx context.Context, id int64) (json.RawMessage, error)
}

type Exporter struct {
	dir     string
	counter Counter
	now     func() time.Time
	logger  *zap.Logger
}

func NewExporter(dir string, counter Counter, logger *zap.Logger) *Exporter {
	if dir == "" {
		dir = "."
	}
	return &Exporter{
		dir:     dir,
		counter: counter,
		now:     time.Now,
		logger:  logger,
	}
}

// RenderDialog builds the dialog workbook for messages and names it
// dialog_<n>_<date>.xlsx. The counter advances on every call, whether or not
// the workbook is later written.
func (e *Exporter) RenderDialog(ctx context.Context, messages []models.Message) (string, *bytes.Buffer, error) {
	n, err := e.counter.NextExportNumber(ctx)
	if err != nil {
		e.logger.Warn("Failed to advance export counter", zap.Error(err), zap.Int("number", n))
	}
	name := fmt.Sprintf("dialog_%d_%s.xlsx", n, e.now().UTC().Format(dateLayout))

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, Rows(messages)); err != nil {
		return name, nil, err
	}
	return name, &buf, nil
}

// ExportDialog writes the dialog workbook into the export directory and
// returns its path.
func (e *Exporter) ExportDialog(ctx context.Context, messages []models.Message) (string, error) {
	name, buf, err := e.RenderDialog(ctx, messages)
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, name)
	if err := writeFile(path, buf.Bytes()); err != nil {
		return "", err
	}
	e.logger.Info("Dialog exported", zap.String("path", path), zap.Int("messages", len(messages)))
	return path, nil
}

// ExportSnapshot fetches a conversation's snapshot and writes it as
// conversation_<id>_<date>.<format>.
func (e *Exporter) ExportSnapshot(ctx context.Context, src SnapshotSource, id int64, format Format) (string, error) {
	raw, err := src.ExportConversation(ctx, id)
	if err != nil {
		return "", fmt.Errorf("export: fetch snapshot %d: %w", id, err)
	}

	var data []byte
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return "", fmt.Errorf("export: snapshot %d: %w", id, err)
		}
		data = buf.Bytes()
	case FormatXLSX:
		var snapshot models.ConversationSnapshot
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			return "", fmt.Errorf("export: snapshot %d: %w", id, err)
		}
		var buf bytes.Buffer
		messages := StoredToMessages(snapshot.Messages, snapshot.Conversation.ConversationType)
		if err := WriteWorkbook(&buf, Rows(messages)); err != nil {
			return "", err
		}
		data = buf.Bytes()
	case FormatYAML:
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("export: snapshot %d: %w", id, err)
		}
		data, err = yaml.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("export: snapshot %d: %w", id, err)
		}
	default:
		return "", fmt.Errorf("export: unknown format %q", format)
	}

	path := filepath.Join(e.dir, fmt.Sprintf("conversation_%d_%s.%s", id, e.now().UTC().Format(dateLayout), format))
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	e.logger.Info("Conversation exported", zap.String("path", path), zap.Int64("conversation_id", id))
	return path, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}
