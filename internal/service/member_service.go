package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/event"
	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/repository"
	"go-charity-backoffice/internal/util"
)

const (
	MemberStatusActive = "active"
	defaultMemberRole  = "member"
)

type DeleteMemberResult struct {
	Held      model.HeldRecord `json:"held"`
	BatchID   string           `json:"batchId"`
	Payments  int              `json:"payments"`
	Aggregate *model.Payment   `json:"aggregate,omitempty"`
}

type MemberService struct {
	members  *repository.MemberRepository
	payments *repository.PaymentRepository
	recycle  *RecycleService
	activity *ActivityService
	bus      event.Bus
	now      func() time.Time
}

func NewMemberService(store docstore.Store, recycle *RecycleService, activity *ActivityService, bus event.Bus) *MemberService {
	return &MemberService{
		members:  repository.NewMemberRepository(store),
		payments: repository.NewPaymentRepository(store),
		recycle:  recycle,
		activity: activity,
		bus:      bus,
		now:      time.Now,
	}
}

func (s *MemberService) Create(ctx context.Context, req model.CreateMemberRequest, actor model.AuditActor) (model.Member, error) {
	name := util.CleanText(req.Name, util.MaxNameLength)
	if name == "" {
		return model.Member{}, fmt.Errorf("%w: name is required", model.ErrInvalidInput)
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = defaultMemberRole
	}

	member, err := s.members.Create(ctx, model.Member{
		Name:     name,
		Email:    strings.TrimSpace(req.Email),
		Phone:    util.CleanText(req.Phone, util.MaxNameLength),
		Role:     role,
		Status:   MemberStatusActive,
		JoinedAt: s.now().UTC(),
	})
	if err != nil {
		return model.Member{}, err
	}

	s.activity.Log(ctx, "member.create", actor, ActivityStatusSuccess, repository.MembersCollection+"/"+member.ID, member, "")
	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeMemberCreated, actor.UserID, member))
	}
	return member, nil
}

func (s *MemberService) List(ctx context.Context) ([]model.Member, error) {
	return s.members.All(ctx)
}

func (s *MemberService) Get(ctx context.Context, id string) (model.Member, error) {
	return s.members.FindByID(ctx, id)
}

// DeleteMember moves a member and all of their payments into the recycle bin
// under one batch. With keepAggregate, a single stand-in payment linked to the
// batch keeps the member's total in the finance figures until the member is
// restored.
func (s *MemberService) DeleteMember(ctx context.Context, id string, keepAggregate bool, actor model.AuditActor) (DeleteMemberResult, error) {
	member, err := s.members.FindByID(ctx, id)
	if err != nil {
		return DeleteMemberResult{}, err
	}

	payments, err := s.payments.FindByMember(ctx, id)
	if err != nil {
		return DeleteMemberResult{}, err
	}

	batchID := uuid.NewString()
	held := make([]model.Payment, 0, len(payments))
	for _, p := range payments {
		if p.IsAggregate {
			continue
		}
		_, err := s.recycle.SoftDelete(ctx, model.SoftDeleteRequest{
			Collection:  repository.PaymentsCollection,
			ID:          p.ID,
			Kind:        model.KindPayment,
			DisplayName: p.Label(),
			DeletedBy:   actor.Name(),
			BatchID:     batchID,
		})
		if err != nil {
			return DeleteMemberResult{}, fmt.Errorf("hold payment %s of member %s: %w", p.ID, id, err)
		}
		held = append(held, p)
	}

	userHold, err := s.recycle.SoftDelete(ctx, model.SoftDeleteRequest{
		Collection:  repository.MembersCollection,
		ID:          member.ID,
		Kind:        model.KindUser,
		DisplayName: member.Name,
		DeletedBy:   actor.Name(),
		BatchID:     batchID,
	})
	if err != nil {
		return DeleteMemberResult{}, err
	}

	result := DeleteMemberResult{Held: userHold, BatchID: batchID, Payments: len(held)}

	if total := sumPayments(held); keepAggregate && total.IsPositive() {
		aggregate, err := s.payments.Create(ctx, model.Payment{
			MemberID:      member.ID,
			MemberName:    member.Name,
			Amount:        total,
			Date:          s.now().UTC(),
			Note:          fmt.Sprintf("Combined contributions of removed member (%d payments)", len(held)),
			IsAggregate:   true,
			LinkedBatchID: batchID,
		})
		if err != nil {
			return result, fmt.Errorf("create aggregate payment: %w", err)
		}
		result.Aggregate = &aggregate
	}

	s.activity.Log(ctx, "member.delete", actor, ActivityStatusSuccess, repository.MembersCollection+"/"+member.ID,
		map[string]any{"batchId": batchID, "payments": len(held), "keepAggregate": keepAggregate}, "")
	return result, nil
}
