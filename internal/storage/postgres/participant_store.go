package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/secrets"
	"activity-nudge-lab/internal/storage"
)

// ParticipantStore implements storage.ParticipantStore using PostgreSQL.
// Token and client secret columns pass through the sealer.
type ParticipantStore struct {
	pool   *Pool
	sealer secrets.Sealer
}

// NewParticipantStore creates a new ParticipantStore. A nil sealer stores plaintext.
func NewParticipantStore(pool *Pool, sealer secrets.Sealer) *ParticipantStore {
	if sealer == nil {
		sealer = secrets.NopSealer{}
	}
	return &ParticipantStore{pool: pool, sealer: sealer}
}

// Compile-time interface check.
var _ storage.ParticipantStore = (*ParticipantStore)(nil)

const participantColumns = `
	experiment_id, display_name, notification_destination,
	access_token, refresh_token, client_id, client_secret, token_expires_at,
	active, created_at
`

// Insert adds a participant. Returns ErrDuplicateKey if experiment_id exists.
func (s *ParticipantStore) Insert(ctx context.Context, p *domain.Participant) error {
	if p == nil || p.ExperimentID == "" {
		return storage.ErrInvalidInput
	}

	sealed, err := s.sealCredential(p.Credential)
	if err != nil {
		return err
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO participants (
			experiment_id, display_name, notification_destination,
			access_token, refresh_token, client_id, client_secret, token_expires_at,
			active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.pool.Exec(ctx, query,
		p.ExperimentID,
		p.DisplayName,
		p.NotificationDestination,
		sealed.AccessToken,
		sealed.RefreshToken,
		p.Credential.ClientID,
		sealed.ClientSecret,
		expiresAtParam(p.Credential.ExpiresAt),
		p.Active,
		createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// GetByID retrieves a participant. Returns ErrNotFound if not exists.
func (s *ParticipantStore) GetByID(ctx context.Context, experimentID string) (*domain.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE experiment_id = $1`

	p, err := s.scanParticipant(s.pool.QueryRow(ctx, query, experimentID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// ListActive retrieves active participants ordered by experiment_id ASC.
func (s *ParticipantStore) ListActive(ctx context.Context) ([]*domain.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM participants
		WHERE active
		ORDER BY experiment_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var result []*domain.Participant
	for rows.Next() {
		p, err := s.scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return result, nil
}

// UpdateCredential replaces the stored tokens. This is the only in-place mutation.
func (s *ParticipantStore) UpdateCredential(ctx context.Context, experimentID string, cred domain.Credential) error {
	sealed, err := s.sealCredential(cred)
	if err != nil {
		return err
	}

	query := `
		UPDATE participants
		SET access_token = $2, refresh_token = $3, token_expires_at = $4, updated_at = now()
		WHERE experiment_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		experimentID,
		sealed.AccessToken,
		sealed.RefreshToken,
		expiresAtParam(cred.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *ParticipantStore) sealCredential(cred domain.Credential) (domain.Credential, error) {
	var err error
	out := cred
	if out.AccessToken, err = s.sealer.Seal(cred.AccessToken); err != nil {
		return out, fmt.Errorf("seal access token: %w", err)
	}
	if out.RefreshToken, err = s.sealer.Seal(cred.RefreshToken); err != nil {
		return out, fmt.Errorf("seal refresh token: %w", err)
	}
	if out.ClientSecret, err = s.sealer.Seal(cred.ClientSecret); err != nil {
		return out, fmt.Errorf("seal client secret: %w", err)
	}
	return out, nil
}

func (s *ParticipantStore) scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var (
		p         domain.Participant
		expiresAt *time.Time
	)
	err := row.Scan(
		&p.ExperimentID, &p.DisplayName, &p.NotificationDestination,
		&p.Credential.AccessToken, &p.Credential.RefreshToken,
		&p.Credential.ClientID, &p.Credential.ClientSecret, &expiresAt,
		&p.Active, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt != nil {
		p.Credential.ExpiresAt = *expiresAt
	}

	if p.Credential.AccessToken, err = s.sealer.Open(p.Credential.AccessToken); err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	if p.Credential.RefreshToken, err = s.sealer.Open(p.Credential.RefreshToken); err != nil {
		return nil, fmt.Errorf("open refresh token: %w", err)
	}
	if p.Credential.ClientSecret, err = s.sealer.Open(p.Credential.ClientSecret); err != nil {
		return nil, fmt.Errorf("open client secret: %w", err)
	}
	return &p, nil
}

func expiresAtParam(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
