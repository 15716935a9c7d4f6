// Package redis keeps the latest payload per (scene, entity, component) in a
// Redis hash per scene.
package redis

import (
	"cmp"
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/storage"
)

const DefaultKeyPrefix = "ECSRUNTIME:SCENE"

var (
	ErrMalformedField = errors.New("malformed snapshot field")

	_ storage.Snapshot = (*Snapshot)(nil)
)

type Option func(s *Snapshot)

func WithLogger(l log.Log) Option {
	return func(s *Snapshot) {
		s.logger = l
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(s *Snapshot) {
		s.prefix = prefix
	}
}

type fieldKey struct {
	entity models.EntityID
	id     models.ComponentID
}

func (k fieldKey) String() string {
	return fmt.Sprintf("%d:%d", k.entity, k.id)
}

func parseField(field string) (fieldKey, error) {
	entity, id, ok := strings.Cut(field, ":")
	if !ok {
		return fieldKey{}, errors.Wrap(ErrMalformedField, field)
	}
	e, err := strconv.ParseInt(entity, 10, 64)
	if err != nil {
		return fieldKey{}, errors.Wrap(ErrMalformedField, field)
	}
	c, err := strconv.ParseInt(id, 10, 32)
	if err != nil {
		return fieldKey{}, errors.Wrap(ErrMalformedField, field)
	}
	return fieldKey{entity: models.EntityID(e), id: models.ComponentID(c)}, nil
}

// Snapshot is a storage.Snapshot over go-redis. Writes are buffered in memory
// and committed in one MULTI/EXEC on Flush; a nil payload deletes the field.
// It is not safe for concurrent use.
type Snapshot struct {
	client  *goredis.Client
	prefix  string
	logger  log.Log
	pending map[string]map[fieldKey][]byte
}

func New(client *goredis.Client, opts ...Option) *Snapshot {
	s := &Snapshot{
		client:  client,
		prefix:  DefaultKeyPrefix,
		logger:  log.Nop(),
		pending: make(map[string]map[fieldKey][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the hash key holding scene's components.
func (s *Snapshot) Key(scene models.Scene) string {
	return s.prefix + ":" + scene.SceneID()
}

func (s *Snapshot) WriteComponent(scene models.Scene, entity models.Entity, id models.ComponentID, data []byte) {
	key := s.Key(scene)
	fields, ok := s.pending[key]
	if !ok {
		fields = make(map[fieldKey][]byte)
		s.pending[key] = fields
	}
	if data != nil {
		data = slices.Clone(data)
	}
	fields[fieldKey{entity: entity.ID(), id: id}] = data
}

// Pending returns the number of buffered field changes.
func (s *Snapshot) Pending() int {
	n := 0
	for _, fields := range s.pending {
		n += len(fields)
	}
	return n
}

// Flush commits buffered changes. On failure nothing is written and the
// buffer is kept for the next attempt.
func (s *Snapshot) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for key, fields := range s.pending {
		var dels []string
		var sets []any
		for f, data := range fields {
			if data == nil {
				dels = append(dels, f.String())
				continue
			}
			sets = append(sets, f.String(), data)
		}
		if len(dels) > 0 {
			pipe.HDel(ctx, key, dels...)
		}
		if len(sets) > 0 {
			pipe.HSet(ctx, key, sets...)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to flush component snapshot", log.Int("pending", s.Pending()), log.Error(err))
		return errors.Wrap(err, "failed to flush snapshot")
	}
	s.logger.Debug("Flushed component snapshot", log.Int("pending", s.Pending()))
	clear(s.pending)
	return nil
}

// Load replays every stored component of scene into target, ordered by entity
// then component id. Entries that fail to apply are logged and skipped; their
// errors are joined into the returned error.
func (s *Snapshot) Load(ctx context.Context, scene models.Scene, target storage.Target) (int, error) {
	values, err := s.client.HGetAll(ctx, s.Key(scene)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read snapshot")
	}

	keys := make([]fieldKey, 0, len(values))
	payloads := make(map[fieldKey][]byte, len(values))
	var all error
	for field, value := range values {
		k, err := parseField(field)
		if err != nil {
			s.logger.Warn("Skipping malformed snapshot field", log.String("field", field))
			all = stderrors.Join(all, err)
			continue
		}
		keys = append(keys, k)
		payloads[k] = []byte(value)
	}
	slices.SortFunc(keys, func(a, b fieldKey) int {
		if a.entity != b.entity {
			return cmp.Compare(a.entity, b.entity)
		}
		return cmp.Compare(a.id, b.id)
	})

	loaded := 0
	for _, k := range keys {
		if err = target.DeserializeComponent(k.id, models.NewEntity(k.entity), payloads[k]); err != nil {
			s.logger.Warn("Failed to restore component",
				log.Int64("entity", int64(k.entity)),
				log.Int32("component_id", int32(k.id)),
				log.Error(err))
			all = stderrors.Join(all, err)
			continue
		}
		loaded++
	}
	return loaded, all
}
