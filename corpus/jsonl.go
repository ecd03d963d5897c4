package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
)

// Documents can carry large text payloads; keep the scanner generous.
const maxJSONLLine = 16 << 20

type idLine struct {
	AnnID int    `json:"ann_id"`
	ID    string `json:"id"`
}

type docLine struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// parseIDMap builds the positional internal-id to chunk-id slice from
// ids.jsonl. Malformed or out-of-range lines are skipped with a warning;
// the corresponding internal ids stay unmapped and hits on them are
// dropped at resolve time.
func parseIDMap(data []byte, count int, logger *slog.Logger) ([]string, error) {
	ids := make([]string, count)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxJSONLLine)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var e idLine
		if err := json.Unmarshal(raw, &e); err != nil {
			logger.Warn("skipping malformed id mapping line",
				slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		if e.AnnID < 0 || e.AnnID >= count {
			logger.Warn("id mapping entry out of range",
				slog.Int("line", line), slog.Int("ann_id", e.AnnID), slog.Int("count", count))
			continue
		}

		ids[e.AnnID] = e.ID
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// parseDocMap builds the chunk-id to document map from docs.jsonl.
// Malformed lines are skipped with a warning.
func parseDocMap(data []byte, logger *slog.Logger) (map[string]Document, error) {
	docs := make(map[string]Document)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxJSONLLine)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var e docLine
		if err := json.Unmarshal(raw, &e); err != nil {
			logger.Warn("skipping malformed document line",
				slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		if e.ID == "" {
			logger.Warn("skipping document line without id", slog.Int("line", line))
			continue
		}

		docs[e.ID] = Document{Text: e.Text, Metadata: e.Metadata}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return docs, nil
}
