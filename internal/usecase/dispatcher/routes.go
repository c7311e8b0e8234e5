package dispatcher

import "github.com/andreyxaxa/Webhook-Pipeline/internal/entity"

func defaultRoutes() map[routeKey]route {
	routes := make(map[routeKey]route)
	add := func(source entity.Source, r route, eventTypes ...string) {
		for _, t := range eventTypes {
			routes[routeKey{source: source, eventType: t}] = r
		}
	}

	add(entity.SourcePaymentPlatform, newRoute(decodePurchase,
		Step[purchasePayload]{"upsert_transaction", upsertTransaction},
		Step[purchasePayload]{"upsert_enrollment", upsertEnrollment},
		Step[purchasePayload]{"record_commission", recordCommission},
		Step[purchasePayload]{"record_ledger_income", recordLedgerIncome},
		Step[purchasePayload]{"enqueue_sale_notification", enqueueSaleNotification},
		Step[purchasePayload]{"increment_daily_revenue", incrementDailyRevenue},
	), _eventPurchaseApproved, _eventPurchaseComplete)

	add(entity.SourcePaymentPlatform, newRoute(decodeCancellation,
		Step[cancellationPayload]{"update_transaction_status", updateTransactionStatus},
		Step[cancellationPayload]{"update_enrollment_status", updateEnrollmentOnCancellation},
		Step[cancellationPayload]{"record_ledger_refund", recordLedgerRefund},
		Step[cancellationPayload]{"enqueue_cancellation_notification", enqueueCancellationNotification},
	), _eventPurchaseCanceled, _eventPurchaseRefunded, _eventPurchaseChargeback)

	add(entity.SourcePaymentPlatform, newRoute(decodePurchase,
		Step[purchasePayload]{"upsert_transaction", upsertTransaction},
		Step[purchasePayload]{"upsert_enrollment", upsertEnrollment},
		Step[purchasePayload]{"record_ledger_income", recordLedgerIncome},
		Step[purchasePayload]{"increment_daily_revenue", incrementDailyRevenue},
	), _eventSubscriptionRenewed)

	add(entity.SourcePaymentPlatform, newRoute(decodeSubscription,
		Step[subscriptionPayload]{"update_enrollment_status", updateEnrollmentOnSubscription},
		Step[subscriptionPayload]{"enqueue_subscription_notification", enqueueSubscriptionNotification},
	), _eventSubscriptionCancel, _eventSubscriptionLate)

	add(entity.SourceCMSPlatform, newRoute(decodeUser,
		Step[userPayload]{"upsert_identity", upsertIdentity},
		Step[userPayload]{"confirm_payment", confirmPayment},
		Step[userPayload]{"flag_privileged_claim", flagPrivilegedClaim},
	), _eventUserCreated, _eventUserUpdated)

	add(entity.SourceCMSPlatform, newRoute(decodeDeletedUser,
		Step[userPayload]{"deactivate_identity", deactivateIdentity},
	), _eventUserDeleted)

	add(entity.SourceMessagingPlatform, newRoute(decodeMessage,
		Step[messagePayload]{"upsert_lead", upsertMessagingLead},
		Step[messagePayload]{"enqueue_intent_command", enqueueIntentCommand},
	), _eventInboundText)

	add(entity.SourceMarketingPlatform, newRoute(decodeMarketing,
		Step[marketingPayload]{"upsert_lead", upsertMarketingLead},
		Step[marketingPayload]{"increment_daily_leads", incrementDailyLeads},
	), _eventLeadCaptured, _eventContactTagged)

	return routes
}
