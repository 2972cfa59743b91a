package main

import (
	"errors"
	"log"
	"net/http"
	"tcs/src/common"
	"tcs/src/lib"
	"tcs/src/models"
	"tcs/src/types"
	"tcs/src/utils"

	"github.com/gin-gonic/gin"
)

func paymentHandlers(g *gin.RouterGroup, registry *common.AttemptRegistry, gateway *lib.GatewayClient) *gin.RouterGroup {
	g.
		POST("/checkout/attempts/:id/payment", func(ctx *gin.Context) {
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
			if attempt.Status() != types.ATTEMPT_RUNNING {
				ctx.JSON(http.StatusConflict, gin.H{"error": "attempt is " + string(attempt.Status())})
				return
			}
			intent := models.PaymentIntent{
				HoldSetID:  attempt.SettlementKey,
				Subtotal:   attempt.Subtotal,
				ServiceFee: attempt.ServiceFee,
				ReturnURL:  utils.BuildReturnURL(attempt.SettlementKey),
			}
			// The intent is immutable once checkout has been opened;
			// concurrent requests collapse onto the same URL.
			checkoutURL, created, err := attempt.OpenCheckout(func() (string, error) {
				return gateway.CreatePayment(ctx, intent)
			})
			if err != nil {
				var gerr *lib.GatewayError
				if errors.As(err, &gerr) {
					log.Printf("Could not initiate payment for attempt %s: %s\n", attempt.ID, gerr.Error())
					ctx.JSON(http.StatusBadGateway, gin.H{
						"error":          "payment could not be initiated",
						"gateway_status": gerr.Status,
						"gateway_body":   gerr.Body,
					})
					return
				}
				ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			code := http.StatusCreated
			if !created {
				code = http.StatusOK
			}
			ctx.JSON(code, gin.H{"data": types.CreatePaymentResponseBody{
				AttemptID:   attempt.ID,
				CheckoutURL: checkoutURL,
				Subtotal:    attempt.Subtotal,
				ServiceFee:  attempt.ServiceFee,
			}})
		}).
		GET("/payments/return", func(ctx *gin.Context) {
			purchaseID, paymentID := lib.ExtractReturnParams(ctx.Request.URL.Query())
			if purchaseID == "" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "no purchase id in callback"})
				return
			}
			attempt := registry.FindBySettlementKey(purchaseID)
			if attempt == nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "no in-flight purchase matches callback"})
				return
			}
			if paymentID == "" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "no payment id in callback"})
				return
			}
			confirmAndSettle(ctx, gateway, attempt, paymentID)
		}).
		POST("/payments/confirm/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			purchaseID := ctx.Query("purchaseId")
			attempt := registry.FindBySettlementKey(purchaseID)
			if attempt == nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "no in-flight purchase matches payment"})
				return
			}
			confirmAndSettle(ctx, gateway, attempt, params.ID)
		})
	return g
}

// confirmAndSettle re-enters the flow at the confirm step. The gateway side
// is idempotent, so a repeated callback lands on an already-settled attempt
// and is answered with its current state.
func confirmAndSettle(ctx *gin.Context, gateway *lib.GatewayClient, attempt *common.PurchaseAttempt, paymentID string) {
	if err := gateway.ConfirmPayment(ctx, paymentID); err != nil {
		var gerr *lib.GatewayError
		if errors.As(err, &gerr) {
			log.Printf("Payment %s could not be confirmed: %s\n", paymentID, gerr.Error())
			ctx.JSON(http.StatusBadGateway, gin.H{
				"error":            "payment could not be confirmed",
				"gateway_status":   gerr.Status,
				"gateway_body":     gerr.Body,
				"gateway_attempts": gerr.Attempts,
			})
			return
		}
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if attempt.Settle() {
		log.Printf("Attempt %s settled with payment %s\n", attempt.ID, paymentID)
	}
	ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
		"attempt_id": attempt.ID,
		"status":     attempt.Status(),
	}})
}
