package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"tcs/src/common"
	"tcs/src/lib"
	"tcs/src/types"

	"github.com/gin-gonic/gin"
)

func refundHandlers(g *gin.RouterGroup, refunds *common.RefundService, ledger *lib.LedgerClient, catalog *common.CatalogRepository) *gin.RouterGroup {
	g.
		GET("/purchases/:id/refund-eligibility", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			decision, reason, amount, err := refunds.Eligibility(ctx, params.ID)
			if err != nil {
				log.Printf("Error evaluating refund for purchase %s: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": types.RefundEligibilityResponseBody{
				PurchaseID: params.ID,
				Decision:   decision,
				Reason:     reason,
				Amount:     amount,
			}})
		}).
		POST("/purchases/:id/refund", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body struct {
				Email string `json:"email"`
			}
			// An empty body is fine; the email is optional.
			if err := ctx.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			decision, reason, result, err := refunds.Request(ctx, params.ID, body.Email)
			if err != nil {
				log.Printf("Refund request failed for purchase %s: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			if result == nil {
				// Blocked is a decision, not a failure; the caller shows the reason.
				ctx.JSON(http.StatusOK, gin.H{"data": types.RefundEligibilityResponseBody{
					PurchaseID: params.ID,
					Decision:   decision,
					Reason:     reason,
				}})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": gin.H{
				"purchase_id": params.ID,
				"decision":    decision,
				"amount":      result.Amount,
				"ok":          result.OK,
			}})
		}).
		GET("/purchases/:id/entries", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			entries, err := ledger.FetchEntries(ctx, params.ID)
			if err != nil {
				log.Printf("Error fetching entries for purchase %s: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			classified := catalog.ClassifyEntries(ctx, entries)
			ctx.JSON(http.StatusOK, gin.H{"data": classified, "count": len(classified)})
		})
	return g
}
