package out

import (
	"context"

	"geoattend/internal/modules/attendance/domain"
	attendanceout "geoattend/internal/modules/attendance/port/out"
	officedto "geoattend/internal/modules/office/dto"
	officein "geoattend/internal/modules/office/port/in"
)

// OfficeBridge serves the tracker's office stream and the report roster from
// the office module.
type OfficeBridge struct {
	offices officein.Usecase
}

var (
	_ attendanceout.OfficeResolver = (*OfficeBridge)(nil)
	_ attendanceout.Roster         = (*OfficeBridge)(nil)
)

func NewOfficeBridge(offices officein.Usecase) *OfficeBridge {
	return &OfficeBridge{offices: offices}
}

func (b *OfficeBridge) Resolve(ctx context.Context, userID string) (<-chan domain.OfficeUpdate, error) {
	resolutions, err := b.offices.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(chan domain.OfficeUpdate, 1)
	go func() {
		defer close(out)
		for res := range resolutions {
			update := domain.OfficeUpdate{Err: res.Err}
			if res.Office != nil {
				office := toAttendanceOffice(*res.Office)
				update.Office = &office
			}
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *OfficeBridge) Office(ctx context.Context, officeID string) (domain.Office, error) {
	office, err := b.offices.Show(ctx, officeID)
	if err != nil {
		return domain.Office{}, err
	}
	return toAttendanceOffice(office), nil
}

func (b *OfficeBridge) Members(ctx context.Context, officeID string) ([]domain.Member, error) {
	members, err := b.offices.Members(ctx, officeID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Member, 0, len(members))
	for _, m := range members {
		out = append(out, domain.Member{UserID: m.UserID, Role: m.Role})
	}
	return out, nil
}

func toAttendanceOffice(o officedto.OfficeOutput) domain.Office {
	return domain.Office{
		ID:            o.ID,
		Name:          o.Name,
		Location:      domain.Coordinates{Latitude: o.Latitude, Longitude: o.Longitude},
		CheckinRadius: o.CheckinRadius,
	}
}
