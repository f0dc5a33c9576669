package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/siamwms/asrsd/internal/status"
	"github.com/siamwms/asrsd/internal/store"
	"github.com/siamwms/asrsd/pkg/wms"
)

type pickRequest struct {
	Number   *int64  `json:"number"`
	BasketID *string `json:"basket_id"`
}

type pickResponse struct {
	BasketID string `json:"basket_id"`
	ShelfID  int64  `json:"shelf_id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	QueueID  int64  `json:"queue_id"`
	Message  string `json:"message"`
}

type basketStatusResponse struct {
	BasketID        string  `json:"basket_id"`
	MappedShelfID   *int64  `json:"mapped_shelf_id"`
	MappedXYZ       *[3]int `json:"mapped_xyz"`
	OccupiedShelfID *int64  `json:"occupied_shelf_id"`
}

func (r pickRequest) resolve() (string, error) {
	if r.Number != nil {
		return wms.NormalizeBasketID(strconv.FormatInt(*r.Number, 10))
	}
	if r.BasketID != nil {
		return wms.NormalizeBasketID(*r.BasketID)
	}
	return "", errors.New("either 'number' or 'basket_id' is required")
}

func (s *Server) handlePick(c *gin.Context) {
	var req pickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	basket, err := req.resolve()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.enqueuePick(c, basket)
}

func (s *Server) handlePickByNumber(c *gin.Context) {
	basket, err := wms.NormalizeBasketID(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.enqueuePick(c, basket)
}

func (s *Server) enqueuePick(c *gin.Context, basket string) {
	ctx := c.Request.Context()

	mapping, err := s.store.MappingForBasket(ctx, basket)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("basket '%s' not found in mapping", basket)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	usable, err := s.store.ShelfCanUse(ctx, mapping.ShelfID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("error checking shelf usability: %v", err)})
		return
	}
	if !usable {
		c.JSON(http.StatusBadRequest, gin.H{"error": "this shelf can't be used now"})
		return
	}

	queueID, err := s.store.EnqueuePick(ctx, basket, mapping.X, mapping.Y, mapping.Z)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, pickResponse{
		BasketID: basket,
		ShelfID:  mapping.ShelfID,
		X:        mapping.X,
		Y:        mapping.Y,
		Z:        mapping.Z,
		QueueID:  queueID,
		Message:  "enqueued",
	})
}

func (s *Server) handleBasketStatus(c *gin.Context) {
	ctx := c.Request.Context()

	basket, err := wms.NormalizeBasketID(c.Param("basket"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := basketStatusResponse{BasketID: basket}

	mapping, err := s.store.MappingForBasket(ctx, basket)
	if err == nil {
		resp.MappedShelfID = &mapping.ShelfID
		xyz := [3]int{mapping.X, mapping.Y, mapping.Z}
		resp.MappedXYZ = &xyz
	} else if !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	occupied, err := s.store.ShelfOf(ctx, basket)
	if err == nil {
		resp.OccupiedShelfID = &occupied
	} else if !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleNormalize(c *gin.Context) {
	basket, err := wms.NormalizeBasketID(c.Param("value"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"basket_id": basket})
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.store.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []wms.OperationRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

func (s *Server) handleResetQueue(c *gin.Context) {
	if err := s.store.ClearQueues(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to clear queues: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "all queues cleared successfully",
	})
}

func (s *Server) handleResetSystem(c *gin.Context) {
	ctx := c.Request.Context()
	var succeeded, failed []string

	if err := s.store.ClearQueues(ctx); err != nil {
		failed = append(failed, fmt.Sprintf("clear queues: %v", err))
	} else {
		succeeded = append(succeeded, "queues cleared")
	}

	if s.mover != nil {
		if err := s.mover.ResetCommand(ctx); err != nil {
			failed = append(failed, fmt.Sprintf("reset mover: %v", err))
		} else {
			succeeded = append(succeeded, "mover reset")
		}
	}

	if s.scanner != nil {
		s.scanner.ResetState()
		succeeded = append(succeeded, "scanner reset")
	}

	result := gin.H{"success": succeeded}
	if len(failed) > 0 {
		result["status"] = "partial"
		result["errors"] = failed
		result["message"] = "reset completed with some errors"
	} else {
		result["status"] = "success"
		result["message"] = "reset completed successfully"
	}
	c.JSON(http.StatusOK, result)
}

// handleStatusSocket streams status snapshots to the client until it
// disconnects. Snapshots come from the Pub/Sub feed, so the socket stays
// responsive even while a command cycle blocks the mover for minutes.
func (s *Server) handleStatusSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[API] WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub, err := status.Subscribe(c.Request.Context(), s.rdb, s.instance)
	if err != nil {
		log.Printf("[API] Status subscribe failed: %v", err)
		return
	}
	defer sub.Close()

	for {
		select {
		case snap, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case err, ok := <-sub.Errors():
			if !ok {
				return
			}
			log.Printf("[API] Status subscription error: %v", err)
		case <-c.Request.Context().Done():
			return
		}
	}
}
