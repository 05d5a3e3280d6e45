package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vitalia/portal/internal/platform/db"
)

// =========== Consultation Repository ===========

type consultationRepoPG struct{ pool db.Beginner }

func NewRepoPG(pool db.Beginner) Repository {
	return &consultationRepoPG{pool: pool}
}

const consultationCols = `id, patient_id, doctor_id, doctor_notes, ai_summary, ai_risk_score,
	ai_risk_explanation, status, created_at, updated_at`

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	var summary []byte
	err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.DoctorNotes, &summary, &c.AIRiskScore,
		&c.AIRiskExplanation, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if len(summary) > 0 {
		c.AISummary = json.RawMessage(summary)
	}
	return &c, err
}

// jsonArg binds an empty document as NULL.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (r *consultationRepoPG) Create(ctx context.Context, c *Consultation) error {
	return db.Run(ctx, r.pool, func(q db.Querier) error {
		return q.QueryRow(ctx, `
			INSERT INTO consultations (patient_id, doctor_id, doctor_notes, ai_summary, ai_risk_score,
				ai_risk_explanation, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id, created_at, updated_at`,
			c.PatientID, c.DoctorID, c.DoctorNotes, jsonArg(c.AISummary), c.AIRiskScore,
			c.AIRiskExplanation, c.Status).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	})
}

func (r *consultationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	var out *Consultation
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		c, err := scanConsultation(q.QueryRow(ctx, `SELECT `+consultationCols+` FROM consultations WHERE id = $1`, id))
		out = c
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *consultationRepoPG) Update(ctx context.Context, c *Consultation) error {
	return db.Run(ctx, r.pool, func(q db.Querier) error {
		err := q.QueryRow(ctx, `
			UPDATE consultations SET doctor_notes=$2, ai_summary=$3, ai_risk_score=$4,
				ai_risk_explanation=$5, status=$6, updated_at=NOW()
			WHERE id = $1
			RETURNING updated_at`,
			c.ID, c.DoctorNotes, jsonArg(c.AISummary), c.AIRiskScore,
			c.AIRiskExplanation, c.Status).Scan(&c.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
}

func (r *consultationRepoPG) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	var items []*Consultation
	var total int
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM consultations
			WHERE patient_id = $1 OR doctor_id = $1`, userID).Scan(&total); err != nil {
			return err
		}
		rows, err := q.Query(ctx, `SELECT `+consultationCols+` FROM consultations
			WHERE patient_id = $1 OR doctor_id = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanConsultation(rows)
			if err != nil {
				return err
			}
			items = append(items, c)
		}
		return rows.Err()
	})
	return items, total, err
}

func (r *consultationRepoPG) Conversations(ctx context.Context, userID uuid.UUID) ([]*Conversation, error) {
	var items []*Conversation
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		rows, err := q.Query(ctx, `
			SELECT c.id, c.status, p.id, p.full_name, p.role, p.avatar_url,
				lm.body, lm.created_at,
				(SELECT COUNT(*) FROM consultation_messages m
					WHERE m.consultation_id = c.id AND m.sender_id <> $1 AND m.read_at IS NULL),
				c.updated_at
			FROM consultations c
			JOIN profiles p ON p.id = CASE WHEN c.patient_id = $1 THEN c.doctor_id ELSE c.patient_id END
			LEFT JOIN LATERAL (
				SELECT body, created_at FROM consultation_messages m
				WHERE m.consultation_id = c.id
				ORDER BY created_at DESC LIMIT 1
			) lm ON true
			WHERE c.patient_id = $1 OR c.doctor_id = $1
			ORDER BY COALESCE(lm.created_at, c.updated_at) DESC`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var cv Conversation
			if err := rows.Scan(&cv.ConsultationID, &cv.Status, &cv.CounterpartID, &cv.CounterpartName,
				&cv.CounterpartRole, &cv.AvatarURL, &cv.LastMessage, &cv.LastMessageAt,
				&cv.UnreadCount, &cv.UpdatedAt); err != nil {
				return err
			}
			items = append(items, &cv)
		}
		return rows.Err()
	})
	return items, err
}

// =========== Message Repository ===========

type messageRepoPG struct{ pool db.Beginner }

func NewMessageRepoPG(pool db.Beginner) MessageRepository {
	return &messageRepoPG{pool: pool}
}

const messageCols = `id, consultation_id, sender_id, sender_role, body, read_at, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConsultationID, &m.SenderID, &m.SenderRole, &m.Body, &m.ReadAt, &m.CreatedAt)
	return &m, err
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	return db.Run(ctx, r.pool, func(q db.Querier) error {
		return q.QueryRow(ctx, `
			INSERT INTO consultation_messages (consultation_id, sender_id, sender_role, body)
			VALUES ($1,$2,$3,$4)
			RETURNING id, created_at`,
			m.ConsultationID, m.SenderID, m.SenderRole, m.Body).Scan(&m.ID, &m.CreatedAt)
	})
}

func (r *messageRepoPG) ListByConsultation(ctx context.Context, consultationID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var items []*Message
	var total int
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM consultation_messages
			WHERE consultation_id = $1`, consultationID).Scan(&total); err != nil {
			return err
		}
		rows, err := q.Query(ctx, `SELECT `+messageCols+` FROM consultation_messages
			WHERE consultation_id = $1
			ORDER BY created_at ASC LIMIT $2 OFFSET $3`, consultationID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			items = append(items, m)
		}
		return rows.Err()
	})
	return items, total, err
}

func (r *messageRepoPG) MarkRead(ctx context.Context, consultationID, readerID uuid.UUID, at time.Time) (int, error) {
	var n int
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE consultation_messages SET read_at = $3
			WHERE consultation_id = $1 AND sender_id <> $2 AND read_at IS NULL`,
			consultationID, readerID, at)
		n = int(tag.RowsAffected())
		return err
	})
	return n, err
}
