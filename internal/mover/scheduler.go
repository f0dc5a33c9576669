package mover

import (
	"context"
	"errors"
	"log"

	"github.com/siamwms/asrsd/internal/store"
	"github.com/siamwms/asrsd/pkg/wms"
)

// commandWindow is how many rows of each queue the scheduler inspects per
// poll. Jobs beyond the window simply wait for an earlier row to drain.
const commandWindow = 20

// selectNext picks the single next job: the oldest eligible row across both
// queues, ties broken toward PICK. A row whose basket has no shelf mapping
// is garbage from a producer and is pruned permanently; a row whose mapped
// shelf is administratively unusable is skipped but kept for a later poll.
// A nil job with nil error is the normal idle state.
func (m *Mover) selectNext(ctx context.Context, window int) (wms.Method, *wms.Job, *wms.Mapping, error) {
	picks, puts, err := m.store.NextWindow(ctx, window)
	if err != nil {
		return "", nil, nil, err
	}

	pick, pickMap := m.firstUsable(ctx, wms.MethodPick, picks)
	put, putMap := m.firstUsable(ctx, wms.MethodPut, puts)

	switch {
	case pick != nil && put == nil:
		return wms.MethodPick, pick, pickMap, nil
	case put != nil && pick == nil:
		return wms.MethodPut, put, putMap, nil
	case pick != nil && put != nil:
		if !put.CreatedAt.Before(pick.CreatedAt) {
			return wms.MethodPick, pick, pickMap, nil
		}
		return wms.MethodPut, put, putMap, nil
	default:
		return "", nil, nil, nil
	}
}

func (m *Mover) firstUsable(ctx context.Context, method wms.Method, jobs []wms.Job) (*wms.Job, *wms.Mapping) {
	for i := range jobs {
		job := jobs[i]

		mapping, err := m.store.MappingForBasket(ctx, job.Basket)
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("[Mover] No mapping for basket %s; pruning job %d", job.Basket, job.ID)
			if err := m.store.DeleteJob(ctx, method, job.ID); err != nil {
				log.Printf("[Mover] Prune job %d: %v", job.ID, err)
			}
			continue
		}
		if err != nil {
			log.Printf("[Mover] Mapping lookup for %s: %v", job.Basket, err)
			continue
		}

		usable, err := m.store.ShelfCanUse(ctx, mapping.ShelfID)
		if err != nil {
			log.Printf("[Mover] Shelf %d availability: %v", mapping.ShelfID, err)
			continue
		}
		if !usable {
			continue
		}
		return &job, mapping
	}
	return nil, nil
}
