package repository

import (
	"context"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/schema"
)

// CopySuffix is appended to the title of a duplicated event.
const CopySuffix = "（コピー）"

// EventScope filters events relative to the current calendar month.
type EventScope string

const (
	ScopeAll      EventScope = "all"
	ScopeUpcoming EventScope = "upcoming"
	ScopePast     EventScope = "past"
)

// EventFilter narrows Events.ListByVersion. Empty fields do not filter;
// FromYm and ToYm are inclusive.
type EventFilter struct {
	FromYm    domain.YearMonth     `json:"fromYm"`
	ToYm      domain.YearMonth     `json:"toYm"`
	Scope     EventScope           `json:"scope" validate:"omitempty,oneof=all upcoming past"`
	EventType string               `json:"eventType"`
	Cadence   domain.Cadence       `json:"cadence" validate:"omitempty,oneof=once monthly"`
	Direction domain.FlowDirection `json:"direction" validate:"omitempty,oneof=expense income"`
}

// NewEvent is the input of Events.Create.
type NewEvent struct {
	EventType      string               `json:"eventType" validate:"required,max=50"`
	Title          string               `json:"title" validate:"max=200"`
	StartYm        domain.YearMonth     `json:"startYm" validate:"ym"`
	Cadence        domain.Cadence       `json:"cadence" validate:"oneof=once monthly"`
	DurationMonths int                  `json:"durationMonths" validate:"min=0,max=1200"`
	AmountYen      int64                `json:"amountYen" validate:"min=0"`
	Direction      domain.FlowDirection `json:"direction" validate:"oneof=expense income"`
	Note           string               `json:"note" validate:"max=1000"`
}

// EventPatch holds the event fields to change; nil fields are kept.
type EventPatch struct {
	EventType      *string               `json:"eventType" validate:"omitnil,min=1,max=50"`
	Title          *string               `json:"title" validate:"omitnil,max=200"`
	StartYm        *domain.YearMonth     `json:"startYm" validate:"omitnil,ym"`
	Cadence        *domain.Cadence       `json:"cadence" validate:"omitnil,oneof=once monthly"`
	DurationMonths *int                  `json:"durationMonths" validate:"omitnil,min=0,max=1200"`
	AmountYen      *int64                `json:"amountYen" validate:"omitnil,min=0"`
	Direction      *domain.FlowDirection `json:"direction" validate:"omitnil,oneof=expense income"`
	Note           *string               `json:"note" validate:"omitnil,max=1000"`
}

var eventWriteScope = []schema.Collection{schema.PlanVersions, schema.LifeEvents}

type eventRepo struct{ *base }

func loadEvent(tx *kvstore.Tx, op, id string) (domain.LifeEvent, error) {
	e, found, err := getDoc[domain.LifeEvent](tx, schema.LifeEvents, id)
	if err != nil {
		return domain.LifeEvent{}, err
	}
	if !found {
		return domain.LifeEvent{}, notFound(op, entityEvent, map[string]any{"eventId": id})
	}
	return e, nil
}

func (r *eventRepo) Get(ctx context.Context, id string, opts ...Option) (domain.LifeEvent, error) {
	var out domain.LifeEvent
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.LifeEvents}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		var err error
		out, err = loadEvent(tx, "event.get", id)
		return err
	})
	return out, storageErr("event.get", entityEvent, err)
}

// ListByVersion returns a version's events ordered by startYm.
func (r *eventRepo) ListByVersion(ctx context.Context, versionID string, f EventFilter, opts ...Option) ([]domain.LifeEvent, error) {
	const op = "event.listByVersion"
	if err := domain.Validate(f); err != nil {
		return nil, invalidInput(op, entityEvent, err)
	}
	from, to := f.FromYm, f.ToYm
	if from == "" {
		from = domain.MinYearMonth
	}
	if to == "" {
		to = domain.MaxYearMonth
	}
	for _, ym := range []domain.YearMonth{from, to} {
		if !ym.Valid() {
			return nil, newError(CodeInvalidArgument, op, entityEvent, "malformed year-month",
				map[string]any{"ym": string(ym)})
		}
	}

	var events []domain.LifeEvent
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.LifeEvents}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		var err error
		events, err = listByIndex[domain.LifeEvent](tx, schema.LifeEvents, "planVersionId_startYm", kvstore.Query{
			Range: kvstore.Bound(kvstore.Key{versionID, string(from)}, kvstore.Key{versionID, string(to)}, false, false),
		})
		return err
	})
	if err != nil {
		return nil, storageErr(op, entityEvent, err)
	}

	current := domain.YearMonthOf(r.clock.Now())
	out := events[:0]
	for _, e := range events {
		switch {
		case f.Scope == ScopeUpcoming && e.StartYm < current:
		case f.Scope == ScopePast && e.StartYm >= current:
		case f.EventType != "" && e.EventType != f.EventType:
		case f.Cadence != "" && e.Cadence != f.Cadence:
		case f.Direction != "" && e.Direction != f.Direction:
		default:
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *eventRepo) Create(ctx context.Context, versionID string, in NewEvent, opts ...Option) (domain.LifeEvent, error) {
	const op = "event.create"
	if err := domain.Validate(in); err != nil {
		return domain.LifeEvent{}, invalidInput(op, entityEvent, err)
	}
	var out domain.LifeEvent
	err := r.withOptionalTx(ctx, opts, eventWriteScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		if _, err := loadVersion(tx, op, versionID); err != nil {
			return err
		}
		now := r.now()
		e := domain.LifeEvent{
			ID:             r.ids.Generate(),
			PlanVersionID:  versionID,
			EventType:      in.EventType,
			Title:          in.Title,
			StartYm:        in.StartYm,
			Cadence:        in.Cadence,
			DurationMonths: in.DurationMonths,
			AmountYen:      in.AmountYen,
			Direction:      in.Direction,
			Note:           in.Note,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := tx.Put(schema.LifeEvents, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return domain.LifeEvent{}, storageErr(op, entityEvent, err)
	}
	return out, nil
}

func (r *eventRepo) Update(ctx context.Context, id string, p EventPatch, opts ...Option) (domain.LifeEvent, error) {
	const op = "event.update"
	if err := domain.Validate(p); err != nil {
		return domain.LifeEvent{}, invalidInput(op, entityEvent, err)
	}
	var out domain.LifeEvent
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.LifeEvents}, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		e, err := loadEvent(tx, op, id)
		if err != nil {
			return err
		}
		if p.EventType != nil {
			e.EventType = *p.EventType
		}
		if p.Title != nil {
			e.Title = *p.Title
		}
		if p.StartYm != nil {
			e.StartYm = *p.StartYm
		}
		if p.Cadence != nil {
			e.Cadence = *p.Cadence
		}
		if p.DurationMonths != nil {
			e.DurationMonths = *p.DurationMonths
		}
		if p.AmountYen != nil {
			e.AmountYen = *p.AmountYen
		}
		if p.Direction != nil {
			e.Direction = *p.Direction
		}
		if p.Note != nil {
			e.Note = *p.Note
		}
		e.UpdatedAt = r.now()
		if _, err := tx.Put(schema.LifeEvents, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return domain.LifeEvent{}, storageErr(op, entityEvent, err)
	}
	return out, nil
}

// Delete removes an event. Absent events are a no-op.
func (r *eventRepo) Delete(ctx context.Context, id string, opts ...Option) error {
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.LifeEvents}, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		return tx.Delete(schema.LifeEvents, id)
	})
	return storageErr("event.delete", entityEvent, err)
}

// Duplicate copies an event under a new id with CopySuffix appended to its
// title. One-off copies are normalised to a one-month duration.
func (r *eventRepo) Duplicate(ctx context.Context, id string, opts ...Option) (domain.LifeEvent, error) {
	const op = "event.duplicate"
	var out domain.LifeEvent
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.LifeEvents}, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		e, err := loadEvent(tx, op, id)
		if err != nil {
			return err
		}
		now := r.now()
		e.ID = r.ids.Generate()
		e.Title += CopySuffix
		if e.Cadence == domain.CadenceOnce {
			e.DurationMonths = 1
		}
		e.CreatedAt, e.UpdatedAt = now, now
		if _, err := tx.Put(schema.LifeEvents, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return domain.LifeEvent{}, storageErr(op, entityEvent, err)
	}
	return out, nil
}
