package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/internal/users"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	pkgerrors "github.com/rassdread/homecheff-app-sub014/pkg/errors"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StepResult is the number of rows one deletion step touched.
type StepResult struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// DeletionReport is returned once the whole cascade has committed.
type DeletionReport struct {
	UserID      uuid.UUID    `json:"userId"`
	Steps       []StepResult `json:"steps"`
	TotalRows   int64        `json:"totalRows"`
	CompletedAt time.Time    `json:"completedAt"`
}

type DeleterParams struct {
	Logger *logger.Logger
	DB     txRunner
	Users  userLookup
	Outbox outboxEmitter
}

// Deleter removes a user and every record that depends on them.
type Deleter struct {
	logg   *logger.Logger
	db     txRunner
	users  userLookup
	outbox outboxEmitter
	steps  []deletionStep
	now    func() time.Time
}

func NewDeleter(params DeleterParams) (*Deleter, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Users == nil {
		return nil, errors.New("user lookup required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox required")
	}
	return &Deleter{
		logg:   params.Logger,
		db:     params.DB,
		users:  params.Users,
		outbox: params.Outbox,
		steps:  defaultSteps(),
		now:    time.Now,
	}, nil
}

// DeleteUser runs the cascade for userID on behalf of actorID. Any failing step
// rolls back the whole deletion.
func (d *Deleter) DeleteUser(ctx context.Context, actorID, userID uuid.UUID) (*DeletionReport, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gebruiker is verplicht")
	}
	if actorID == userID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "je kunt je eigen account niet verwijderen")
	}
	ctx = d.logg.WithUserID(ctx, userID.String())
	if _, err := d.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gebruiker niet gevonden")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	report := &DeletionReport{UserID: userID}
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		report.Steps = report.Steps[:0]
		report.TotalRows = 0

		s, err := resolveScope(ctx, tx, userID)
		if err != nil {
			return err
		}
		rows := make(map[string]int64, len(d.steps))
		for _, step := range d.steps {
			affected, err := step.run(ctx, tx, s)
			if err != nil {
				return fmt.Errorf("step %q: %w", step.Name, err)
			}
			report.Steps = append(report.Steps, StepResult{Name: step.Name, Rows: affected})
			report.TotalRows += affected
			rows[step.Name] += affected
		}

		report.CompletedAt = d.now().UTC()
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserDeleted,
			AggregateType: enums.AggregateUser,
			AggregateID:   userID,
			Version:       1,
			Data: payloads.UserDeletedEvent{
				UserID:      userID,
				DeletedBy:   actorID,
				RowsByStep:  rows,
				CompletedAt: report.CompletedAt,
			},
		})
	})
	if err != nil {
		d.logg.Error(ctx, "user deletion rolled back", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "gebruiker verwijderen mislukt")
	}

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"deleted_by": actorID.String(),
		"total_rows": report.TotalRows,
		"steps":      len(report.Steps),
	})
	d.logg.Info(logCtx, "user deleted")
	return report, nil
}
