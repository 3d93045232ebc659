package service

import (
	"context"
	"log/slog"

	"github.com/jengzang/traffic-backend-go/internal/events"
	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
)

// CongestionService stores driver incident reports
type CongestionService struct {
	store      *repository.Store
	publisher  events.Publisher
	snapRadius float64
}

// NewCongestionService creates a new congestion service
func NewCongestionService(store *repository.Store, publisher events.Publisher, snapRadius float64) *CongestionService {
	return &CongestionService{store: store, publisher: publisher, snapRadius: snapRadius}
}

// Report attaches a congestion to the nearest strip unless one of the same
// type is already there. A report far from any strip is dropped. It returns
// whether a congestion was stored.
func (s *CongestionService) Report(ctx context.Context, t models.CongestionType, p spatial.Point, reportedMs int64) (bool, error) {
	if !t.Valid() {
		return false, protocol.Validation(protocol.MsgUnknownType)
	}

	c := models.Congestion{Type: t, Lat: p.Lat, Lon: p.Lon, ReportedMs: reportedMs}
	var stored bool
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		strip, err := r.Roads.Nearest(ctx, p, s.snapRadius)
		if err != nil || strip == nil {
			return err
		}
		c.StripID = strip.ID

		exists, err := r.Congestions.Exists(ctx, t, strip.ID)
		if err != nil || exists {
			return err
		}
		stored, err = r.Congestions.InsertIfAbsent(ctx, &c)
		return err
	})
	if err != nil {
		return false, protocol.Store(err)
	}

	if stored {
		slog.Info("congestion reported", "id", c.ID, "type", t.String(), "strip_id", c.StripID)
		s.publisher.CongestionReported(ctx, c)
	}
	return stored, nil
}

// Delete removes a congestion. Unknown IDs are ignored.
func (s *CongestionService) Delete(ctx context.Context, id int64) error {
	if _, err := s.store.Congestions.Delete(ctx, id); err != nil {
		return protocol.Store(err)
	}
	return nil
}
