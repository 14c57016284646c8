package app

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"

	"github.com/example/reproc/internal/core/entity"
	"github.com/example/reproc/internal/locker"
	"github.com/example/reproc/internal/logkeys"
	"github.com/example/reproc/internal/models"
	"github.com/example/reproc/internal/ports/secondary"
)

// Hooks let an entity service attach domain validation to the shared
// lifecycle engine. Each hook runs with the entity lock held and a
// non-nil error aborts the operation before anything is persisted.
type Hooks[T models.Entity] interface {
	ValidateCreate(ctx context.Context, obj T) error
	// ValidateUpdate receives the stored entity, the candidate and the
	// list of changed attribute paths.
	ValidateUpdate(ctx context.Context, old, updated T, changed []string) error
	ValidateDelete(ctx context.Context, obj T) error
}

// Lifecycle is the create/read/update/delete engine shared by every
// entity type. Mutations serialize on a per-identifier lock, record an
// audit history entry and persist the entity as a document.
type Lifecycle[T models.Entity] struct {
	name   string
	store  secondary.EntityStore
	locks  *locker.Locker
	hooks  Hooks[T]
	newFn  func() T
	logger log.Logger
	now    func() time.Time
}

func NewLifecycle[T models.Entity](
	name string,
	store secondary.EntityStore,
	locks *locker.Locker,
	hooks Hooks[T],
	newFn func() T,
	logger log.Logger,
) *Lifecycle[T] {
	return &Lifecycle[T]{
		name:   name,
		store:  store,
		locks:  locks,
		hooks:  hooks,
		newFn:  newFn,
		logger: logger.With(logkeys.Entity, name),
		now:    time.Now,
	}
}

// Create persists a new entity. The identifier must be set and unused.
func (l *Lifecycle[T]) Create(ctx context.Context, obj T) (T, error) {
	var zero T
	prepid := obj.ID()
	if prepid == "" {
		return zero, fmt.Errorf("%s: missing identifier: %w", l.name, ErrValidationFailed)
	}
	existing, err := l.store.Get(ctx, prepid)
	if err != nil {
		return zero, fmt.Errorf("checking %s %s: %w", l.name, prepid, err)
	}
	if existing != nil {
		return zero, fmt.Errorf("%s %s: %w", l.name, prepid, ErrDuplicateEntity)
	}

	release := l.locks.Acquire(prepid)
	defer release()

	obj.AddHistory("create", prepid, l.now().Unix())
	if err := l.hooks.ValidateCreate(ctx, obj); err != nil {
		return zero, fmt.Errorf("%s %s: %w: %v", l.name, prepid, ErrValidationFailed, err)
	}
	doc, err := entity.ToDocument(obj)
	if err != nil {
		return zero, fmt.Errorf("encoding %s %s: %w", l.name, prepid, err)
	}
	if err := l.store.Save(ctx, doc); err != nil {
		return zero, fmt.Errorf("saving %s %s: %w", l.name, prepid, err)
	}
	ctxlog.Logger(ctx, l.logger).Info(
		logkeys.Message, "created",
		logkeys.PrepID, prepid,
	)
	return obj, nil
}

// Get loads an entity by identifier. A missing identifier yields the
// zero value and no error.
func (l *Lifecycle[T]) Get(ctx context.Context, prepid string) (T, error) {
	var zero T
	doc, err := l.store.Get(ctx, prepid)
	if err != nil {
		return zero, fmt.Errorf("loading %s %s: %w", l.name, prepid, err)
	}
	if doc == nil {
		return zero, nil
	}
	obj := l.newFn()
	if err := entity.FromDocument(doc, obj); err != nil {
		return zero, fmt.Errorf("decoding %s %s: %w", l.name, prepid, err)
	}
	return obj, nil
}

// Update persists a changed entity. The stored history is carried over
// before comparing, so the audit trail never counts as a change itself.
// When nothing differs the stored entity is returned untouched.
func (l *Lifecycle[T]) Update(ctx context.Context, obj T) (T, error) {
	var zero T
	prepid := obj.ID()

	release := l.locks.Acquire(prepid)
	defer release()

	old, err := l.Get(ctx, prepid)
	if err != nil {
		return zero, err
	}
	if isZero(old) {
		return zero, fmt.Errorf("%s %s: %w", l.name, prepid, ErrNotFound)
	}
	obj.SetHistory(old.GetHistory())

	oldDoc, err := entity.ToDocument(old)
	if err != nil {
		return zero, fmt.Errorf("encoding %s %s: %w", l.name, prepid, err)
	}
	newDoc, err := entity.ToDocument(obj)
	if err != nil {
		return zero, fmt.Errorf("encoding %s %s: %w", l.name, prepid, err)
	}
	changed := entity.Diff(oldDoc, newDoc)
	if len(changed) == 0 {
		ctxlog.Logger(ctx, l.logger).Debug(
			logkeys.Message, "nothing changed",
			logkeys.PrepID, prepid,
		)
		return old, nil
	}

	obj.AddHistory("update", changed, l.now().Unix())
	if err := l.hooks.ValidateUpdate(ctx, old, obj, changed); err != nil {
		return zero, fmt.Errorf("%s %s: %w: %v", l.name, prepid, ErrValidationFailed, err)
	}
	doc, err := entity.ToDocument(obj)
	if err != nil {
		return zero, fmt.Errorf("encoding %s %s: %w", l.name, prepid, err)
	}
	if err := l.store.Save(ctx, doc); err != nil {
		return zero, fmt.Errorf("saving %s %s: %w", l.name, prepid, err)
	}
	ctxlog.Logger(ctx, l.logger).Info(
		logkeys.Message, "updated",
		logkeys.PrepID, prepid,
		logkeys.GenericCount, len(changed),
	)
	return obj, nil
}

// Delete removes an entity after the delete hook approves.
func (l *Lifecycle[T]) Delete(ctx context.Context, prepid string) error {
	obj, err := l.Get(ctx, prepid)
	if err != nil {
		return err
	}
	if isZero(obj) {
		return fmt.Errorf("%s %s: %w", l.name, prepid, ErrNotFound)
	}

	release := l.locks.Acquire(prepid)
	defer release()

	if err := l.hooks.ValidateDelete(ctx, obj); err != nil {
		return fmt.Errorf("%s %s: %w: %v", l.name, prepid, ErrValidationFailed, err)
	}
	if err := l.store.Delete(ctx, prepid); err != nil {
		return fmt.Errorf("deleting %s %s: %w", l.name, prepid, err)
	}
	ctxlog.Logger(ctx, l.logger).Info(
		logkeys.Message, "deleted",
		logkeys.PrepID, prepid,
	)
	return nil
}

// save persists an entity without diffing. Callers hold the entity lock
// and have already recorded a history entry.
func (l *Lifecycle[T]) save(ctx context.Context, obj T) error {
	doc, err := entity.ToDocument(obj)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", l.name, obj.ID(), err)
	}
	if err := l.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("saving %s %s: %w", l.name, obj.ID(), err)
	}
	return nil
}

// isZero reports whether a generic entity value is absent. Entities are
// pointer types, so the zero value is a nil pointer.
func isZero[T models.Entity](obj T) bool {
	v := reflect.ValueOf(obj)
	return !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil())
}
