package rest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
)

const (
	headerIdempotencyKey  = "Idempotency-Key"
	maxIdempotencyKeyLen  = 128
	defaultIdempotencyTTL = 24 * time.Hour
)

// handlerResult — готовый HTTP-ответ, который можно сохранить и воспроизвести.
type handlerResult struct {
	status int
	body   []byte
}

// withIdempotency выполняет run не более одного раза для пары (ключ, тело запроса).
// Без заголовка Idempotency-Key или без хранилища run вызывается напрямую.
func (h *Handler) withIdempotency(ctx context.Context, rawKey string, userID int64, req any, run func(context.Context) handlerResult) handlerResult {
	key := strings.TrimSpace(rawKey)
	if h.idem == nil || key == "" {
		return run(ctx)
	}
	if len(key) > maxIdempotencyKeyLen {
		return handlerResult{http.StatusBadRequest, encodeError(http.StatusBadRequest, "Idempotency-Key is too long")}
	}

	// Ключ принадлежит пользователю: одинаковые ключи разных пользователей не пересекаются.
	scopedKey := fmt.Sprintf("%d:%s", userID, key)

	hash, err := requestHash(userID, req)
	if err != nil {
		h.logger.WithError(err).Warn("failed to build idempotency request hash")
		return handlerResult{http.StatusInternalServerError, encodeError(http.StatusInternalServerError, msgInternal)}
	}

	record, err := h.idem.CreateProcessing(ctx, scopedKey, hash, time.Now().UTC().Add(h.idemTTL))
	if err != nil {
		return h.replay(err, record)
	}

	result := run(ctx)
	if result.status >= http.StatusBadRequest {
		if markErr := h.idem.MarkFailed(ctx, scopedKey, result.body, result.status); markErr != nil {
			h.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
		}
		return result
	}

	if markErr := h.idem.MarkDone(ctx, scopedKey, result.body, result.status); markErr != nil {
		h.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
	}
	return result
}

func (h *Handler) replay(createErr error, record domain.IdempotencyRecord) handlerResult {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return handlerResult{http.StatusConflict, encodeError(http.StatusConflict, "Idempotency-Key is already used with a different request payload")}
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			if record.HTTPStatus == 0 || len(record.ResponseBody) == 0 {
				return handlerResult{http.StatusInternalServerError, encodeError(http.StatusInternalServerError, msgInternal)}
			}
			return handlerResult{record.HTTPStatus, record.ResponseBody}
		case domain.IdempotencyStatusProcessing:
			return handlerResult{http.StatusConflict, encodeError(http.StatusConflict, "A request with the same Idempotency-Key is still being processed")}
		default:
			return handlerResult{http.StatusInternalServerError, encodeError(http.StatusInternalServerError, msgInternal)}
		}
	default:
		h.logger.WithError(createErr).Warn("failed to create idempotency record")
		return handlerResult{http.StatusInternalServerError, encodeError(http.StatusInternalServerError, msgInternal)}
	}
}

func requestHash(userID int64, req any) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	sum := sha256.New()
	_, _ = fmt.Fprintf(sum, "POST /orders|%d|", userID)
	_, _ = sum.Write(payload)
	return hex.EncodeToString(sum.Sum(nil)), nil
}
