package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maxshopweb/checkout/internal/domain"
)

// sessionDTO is the explicit serialization boundary: exactly the persisted
// subset of the session. IsCreatingOrder is transient and has no field here.
type sessionDTO struct {
	OwnerID           string               `json:"owner_id"`
	CurrentStep       int                  `json:"current_step"`
	CompletedSteps    []int                `json:"completed_steps"`
	PersonalData      *domain.PersonalData `json:"personal_data,omitempty"`
	ShippingData      *domain.ShippingData `json:"shipping_data,omitempty"`
	DeliveryType      domain.DeliveryType  `json:"delivery_type,omitempty"`
	PaymentMethod     string               `json:"payment_method,omitempty"`
	ShippingCost      *float64             `json:"shipping_cost,omitempty"`
	SelectedAddressID string               `json:"selected_address_id,omitempty"`
	IsGuest           bool                 `json:"is_guest"`
}

func toDTO(s *domain.CheckoutSession) *sessionDTO {
	dto := &sessionDTO{
		OwnerID:           s.OwnerID,
		CurrentStep:       s.CurrentStep,
		PersonalData:      s.PersonalData,
		ShippingData:      s.ShippingData,
		DeliveryType:      s.DeliveryType,
		PaymentMethod:     s.PaymentMethod,
		ShippingCost:      s.ShippingCost,
		SelectedAddressID: s.SelectedAddressID,
		IsGuest:           s.IsGuest,
	}
	for step := domain.FirstStep; step <= domain.LastStep; step++ {
		if s.CompletedSteps[step] {
			dto.CompletedSteps = append(dto.CompletedSteps, step)
		}
	}
	return dto
}

func fromDTO(dto *sessionDTO) *domain.CheckoutSession {
	s := &domain.CheckoutSession{
		OwnerID:           dto.OwnerID,
		CurrentStep:       dto.CurrentStep,
		CompletedSteps:    make(map[int]bool, len(dto.CompletedSteps)),
		PersonalData:      dto.PersonalData,
		ShippingData:      dto.ShippingData,
		DeliveryType:      dto.DeliveryType,
		PaymentMethod:     dto.PaymentMethod,
		ShippingCost:      dto.ShippingCost,
		SelectedAddressID: dto.SelectedAddressID,
		IsGuest:           dto.IsGuest,
	}
	for _, step := range dto.CompletedSteps {
		s.CompletedSteps[step] = true
	}
	return s
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		ttl:    7 * 24 * time.Hour,
	}
}

type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *RedisSessionStore) Get(ctx context.Context, ownerID string) (*domain.CheckoutSession, error) {
	data, err := r.client.Get(ctx, sessionKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var dto sessionDTO
	if err2 := json.Unmarshal(data, &dto); err2 != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err2)
	}

	return fromDTO(&dto), nil
}

func (r *RedisSessionStore) Save(ctx context.Context, session *domain.CheckoutSession) error {
	data, err := json.Marshal(toDTO(session))
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(session.OwnerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, ownerID string) error {
	if err := r.client.Del(ctx, sessionKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionKey(ownerID string) string {
	return fmt.Sprintf("checkout:%s", ownerID)
}
