package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	tsLayout = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	out      *lineWriter
	format   logFormat
	keyOrder []string
}

// lineHandler renders records as one line each, either key=value pairs or a
// JSON object, with well-known keys first in a fixed order.
type lineHandler struct {
	cfg    handlerConfig
	rank   map[string]int
	attrs  []slog.Attr
	prefix string
}

func newLineHandler(cfg handlerConfig) *lineHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if len(cfg.keyOrder) == 0 {
		cfg.keyOrder = defaultKeyOrder
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, k := range cfg.keyOrder {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return &lineHandler{cfg: cfg, rank: rank}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, prefixed(h.prefix, a))
	}
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.out == nil {
		return errors.New("logger: writer not initialized")
	}

	rec := record{}
	ts := r.Time.UTC()
	if r.Time.IsZero() {
		ts = time.Now().UTC()
	}
	rec.set(FieldTS, ts.Format(tsLayout))
	rec.set(FieldLevel, levelName(r.Level.String()))
	for _, a := range h.attrs {
		rec.add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.add(h.prefix, a)
		return true
	})
	rec.fillFromContext(ctx)
	rec.finish(r.Message, h.cfg.format == formatJSON)

	var line []byte
	var err error
	keys := rec.sortedKeys(h.rank)
	if h.cfg.format == formatJSON {
		line, err = rec.encodeJSON(keys)
	} else {
		line = rec.encodeKV(keys)
	}
	if err != nil {
		return err
	}
	return h.cfg.out.WriteLine(append(line, '\n'))
}

// record collects the fields of one log line; later values win.
type record map[string]any

func (rec record) set(key string, v any) {
	rec[key] = v
}

func (rec record) setDefault(key string, v any) {
	if _, ok := rec[key]; !ok {
		rec[key] = v
	}
}

func (rec record) add(prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			rec.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, v, ok := fieldValue(key, a.Value); ok {
		rec[k] = v
	}
}

func (rec record) fillFromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	if v := RIDFrom(ctx); v != "" {
		rec.setDefault(FieldRID, v)
	}
	if v := OrderIDFrom(ctx); v != "" {
		rec.setDefault("order_id", v)
	}
	if v := UpdateIDFrom(ctx); v != 0 {
		rec.setDefault("update_id", int64(v))
	}
	if v := UserIDFrom(ctx); v != 0 {
		rec.setDefault("user_id", v)
	}
	if v := ChatIDFrom(ctx); v != 0 {
		rec.setDefault("chat_id", v)
	}
	if v := HandlerFrom(ctx); v != "" {
		rec.setDefault("handler", v)
	}
}

// finish applies the line-wide rules: event and component defaults, compact
// request ids, enum clean-up, masking and removal of empty values.
func (rec record) finish(msg string, keepFullRID bool) {
	if s, _ := rec[FieldEvent].(string); s == "" {
		if msg == "" {
			msg = "unknown"
		}
		rec[FieldEvent] = msg
	}
	if s, _ := rec[FieldComponent].(string); s == "" {
		rec[FieldComponent] = "app"
	}
	if rid, _ := rec[FieldRID].(string); rid != "" {
		if compact := CompactRID(rid); compact != rid {
			rec[FieldRID] = compact
			if keepFullRID {
				rec.setDefault(FieldRIDFull, rid)
			}
		}
	}
	if s, ok := rec[FieldStatus].(string); ok {
		rec[FieldStatus] = cleanStatus(s)
	}
	if s, ok := rec[FieldOutcome].(string); ok {
		if o, known := cleanOutcome(s); known {
			rec[FieldOutcome] = o
		} else {
			delete(rec, FieldOutcome)
		}
	}
	for k, v := range rec {
		s, isString := v.(string)
		switch {
		case v == nil, isString && s == "":
			delete(rec, k)
		case isString && maskedFields[k]:
			rec[k] = Mask(s)
		}
	}
}

func (rec record) sortedKeys(rank map[string]int) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (rec record) encodeJSON(keys []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		v, err := json.Marshal(rec[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (rec record) encodeKV(keys []string) []byte {
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(rec[k]))
	}
	return buf.Bytes()
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		s = strconv.FormatBool(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case uint64:
		s = strconv.FormatUint(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

// fieldValue converts an attribute into a JSON-friendly value. Durations are
// reported in milliseconds under a key ending in _ms.
func fieldValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case fmt.Stringer:
		return key, strings.TrimSpace(x.String()), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey maps duration attributes onto *_ms keys so every sink reports milliseconds.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func prefixed(prefix string, a slog.Attr) slog.Attr {
	if prefix == "" {
		return a
	}
	a.Key = joinKey(prefix, a.Key)
	return a
}
