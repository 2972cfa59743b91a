package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"tcs/src/common"
	"tcs/src/types"
	"tcs/src/utils"

	"github.com/gin-gonic/gin"
)

func checkoutHandlers(g *gin.RouterGroup, catalog *common.CatalogRepository, holds *common.HoldManager, registry *common.AttemptRegistry) *gin.RouterGroup {
	g.
		POST("/checkout/holds", func(ctx *gin.Context) {
			var body types.CreateHoldsRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if existing := registry.FindRunningByUser(body.UserID); existing != nil {
				log.Printf("Resuming attempt %s for user %d\n", existing.ID, body.UserID)
				ctx.JSON(http.StatusOK, attemptResponse(existing))
				return
			}
			if hold, err := holds.Inventory.FetchActiveHold(ctx, body.UserID); err != nil {
				log.Printf("Error checking active hold for user %d: %s\n", body.UserID, err.Error())
			} else if hold != nil {
				log.Printf("Adopting backend hold %s for user %d\n", hold.ID, body.UserID)
				ctx.JSON(http.StatusOK, attemptResponse(registry.Adopt(hold)))
				return
			}
			index, err := catalog.SelectionIndex(ctx)
			if err != nil {
				log.Printf("Error loading selection index: %s\n", err.Error())
				ctx.JSON(http.StatusBadGateway, gin.H{"error": "could not resolve cart selections"})
				return
			}
			reqs, subtotal, err := common.GroupCart(body.Items, index)
			if err != nil {
				if errors.Is(err, common.ErrEmptyCart) {
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			created, settlementKey, err := holds.CreateHolds(ctx, body.UserID, reqs)
			if err != nil {
				var partial *common.PartialHoldFailure
				if errors.As(err, &partial) {
					log.Printf("Partial hold failure for user %d: %s\n", body.UserID, err.Error())
					ctx.JSON(http.StatusConflict, gin.H{"error": partial.Error()})
					return
				}
				ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			fee := utils.ComputeServiceFee(subtotal)
			attempt := registry.Begin(body.UserID, created, settlementKey, subtotal, fee)
			ctx.JSON(http.StatusCreated, attemptResponse(attempt))
		}).
		GET("/checkout/attempts/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			attempt := registry.Get(params.ID)
			if attempt == nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": types.AttemptStatusResponseBody{
				AttemptID:        attempt.ID,
				Status:           attempt.Status(),
				RemainingSeconds: int(attempt.Remaining().Seconds()),
				ExpiresAt:        attempt.Deadline,
				Notice:           attempt.Notice(),
			}})
		}).
		DELETE("/checkout/attempts/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			attempt := registry.Get(params.ID)
			if attempt == nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
				return
			}
			confirm, _ := strconv.ParseBool(ctx.Query("confirm"))
			if err := registry.UserCancel(ctx, attempt, confirm); err != nil {
				ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		POST("/catalog/invalidate", func(ctx *gin.Context) {
			catalog.Invalidate(ctx)
			ctx.Status(http.StatusNoContent)
		})
	return g
}

func attemptResponse(attempt *common.PurchaseAttempt) gin.H {
	return gin.H{"data": gin.H{
		"attempt_id":        attempt.ID,
		"holds":             attempt.Holds(),
		"settlement_key":    attempt.SettlementKey,
		"subtotal":          attempt.Subtotal,
		"service_fee":       attempt.ServiceFee,
		"expires_at":        attempt.Deadline,
		"remaining_seconds": int(attempt.Remaining().Seconds()),
		"status":            attempt.Status(),
	}}
}
