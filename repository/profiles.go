package repository

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-authgate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles stores datastore records in a SQL table.
type Profiles interface {
	repository.Repository[*ProfileRecord]
	authgate.Datastore

	WriteRecordTx(ctx context.Context, tx bun.IDB, path string, value map[string]any) (*ProfileRecord, error)
	ReadRecord(ctx context.Context, path string) (map[string]any, error)
}

type profiles struct {
	repository.Repository[*ProfileRecord]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Profiles                              = (*profiles)(nil)
	_ authgate.Datastore                    = (*profiles)(nil)
	_ repository.Repository[*ProfileRecord] = (*profiles)(nil)
)

// NewProfilesRepository creates the profiles repository. Record ids are
// derived from the path so the same path always maps to the same row.
func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*ProfileRecord](db, repository.ModelHandlers[*ProfileRecord]{
		NewRecord: func() *ProfileRecord { return &ProfileRecord{} },
		GetID: func(r *ProfileRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *ProfileRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "path"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

// WriteRecord implements authgate.Datastore.
func (p *profiles) WriteRecord(ctx context.Context, path string, value map[string]any) error {
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := p.WriteRecordTx(ctx, tx, path, value)
		return err
	})
}

func (p *profiles) WriteRecordTx(ctx context.Context, tx bun.IDB, path string, value map[string]any) (*ProfileRecord, error) {
	path = normalizePath(path)
	if path == "/" {
		return nil, goerrors.New("record path is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	id, err := hashid.NewUUID(path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive record id").
			WithMetadata(map[string]any{"path": path})
	}

	now := p.now()
	record := &ProfileRecord{
		ID:        id,
		Path:      path,
		UID:       lastSegment(path),
		Email:     stringValue(value, "email"),
		Payload:   value,
		UpdatedAt: &now,
	}
	if record.Payload == nil {
		record.Payload = map[string]any{}
	}

	existing, err := p.Repository.GetByIdentifierTx(ctx, tx, path)
	if err == nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		return p.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(existing.ID.String()))
	}
	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	record.CreatedAt = &now
	return p.Repository.CreateTx(ctx, tx, record)
}

// ReadRecord returns the payload stored at path, or nil when absent.
func (p *profiles) ReadRecord(ctx context.Context, path string) (map[string]any, error) {
	record, err := p.Repository.GetByIdentifier(ctx, normalizePath(path))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record.Payload, nil
}

func normalizePath(path string) string {
	return "/" + strings.Trim(strings.TrimSpace(path), "/")
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func stringValue(values map[string]any, key string) string {
	if s, ok := values[key].(string); ok {
		return s
	}
	return ""
}
