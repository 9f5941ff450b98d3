package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"geoattend/internal/modules/office/domain"
	officedto "geoattend/internal/modules/office/dto"
	officein "geoattend/internal/modules/office/port/in"
	"geoattend/internal/modules/office/service"
	apperrors "geoattend/internal/platform/errors"
)

type Interactor struct {
	svc *service.DirectoryService
}

func NewInteractor(svc *service.DirectoryService) officein.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) List(ctx context.Context) ([]officedto.OfficeOutput, error) {
	dir, err := i.svc.Directory(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]officedto.OfficeOutput, 0, len(dir.Offices))
	for _, o := range dir.Offices {
		out = append(out, toOutput(o, len(dir.Members(o.ID))))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (i *Interactor) Show(ctx context.Context, officeID string) (officedto.OfficeOutput, error) {
	dir, office, err := i.office(ctx, officeID)
	if err != nil {
		return officedto.OfficeOutput{}, err
	}
	return toOutput(office, len(dir.Members(office.ID))), nil
}

func (i *Interactor) Members(ctx context.Context, officeID string) ([]officedto.MemberOutput, error) {
	dir, office, err := i.office(ctx, officeID)
	if err != nil {
		return nil, err
	}
	members := dir.Members(office.ID)
	out := make([]officedto.MemberOutput, 0, len(members))
	for _, m := range members {
		out = append(out, officedto.MemberOutput{UserID: m.UserID, Role: m.Role})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].UserID < out[b].UserID })
	return out, nil
}

func (i *Interactor) Resolve(ctx context.Context, userID string) (<-chan officedto.ResolutionOutput, error) {
	resolutions, err := i.svc.Resolve(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	out := make(chan officedto.ResolutionOutput, 1)
	go func() {
		defer close(out)
		for res := range resolutions {
			item := officedto.ResolutionOutput{Err: res.Err}
			if res.Office != nil {
				o := toOutput(*res.Office, 0)
				item.Office = &o
			}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (i *Interactor) office(ctx context.Context, officeID string) (domain.Directory, domain.Office, error) {
	officeID = strings.TrimSpace(officeID)
	if officeID == "" {
		return domain.Directory{}, domain.Office{}, fmt.Errorf("%w: office id is required", apperrors.ErrInvalidInput)
	}
	dir, err := i.svc.Directory(ctx)
	if err != nil {
		return domain.Directory{}, domain.Office{}, err
	}
	office, ok := dir.Office(officeID)
	if !ok {
		return domain.Directory{}, domain.Office{}, fmt.Errorf("%w: office %s", apperrors.ErrNotFound, officeID)
	}
	return dir, office, nil
}

func toOutput(o domain.Office, members int) officedto.OfficeOutput {
	return officedto.OfficeOutput{
		ID:            o.ID,
		Name:          o.Name,
		Latitude:      o.Latitude,
		Longitude:     o.Longitude,
		CheckinRadius: o.CheckinRadius,
		AdminID:       o.AdminID,
		Members:       members,
	}
}
