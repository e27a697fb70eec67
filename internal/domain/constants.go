package domain

const (
	TxnTypeCredit = "CREDIT"
	TxnTypeDebit  = "DEBIT"
	TxnTypeRefund = "REFUND"
)

const (
	TxnStatusPending   = "PENDING"
	TxnStatusCompleted = "COMPLETED"
	TxnStatusFailed    = "FAILED"
)

const (
	TxnCategoryTopup      = "TOPUP"
	TxnCategoryCharging   = "CHARGING"
	TxnCategoryRefund     = "REFUND"
	TxnCategoryAdjustment = "ADJUSTMENT"
)

const (
	SessionStatusPending   = "PENDING"
	SessionStatusActive    = "ACTIVE"
	SessionStatusStopped   = "STOPPED"
	SessionStatusCompleted = "COMPLETED"
	SessionStatusFailed    = "FAILED"
)

const (
	ActionRemoteStart = "RemoteStartTransaction"
	ActionRemoteStop  = "RemoteStopTransaction"
)

const (
	CommandAccepted = "Accepted"
	CommandRejected = "Rejected"
)

const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

const (
	StopReasonCustomer = "CUSTOMER"
	StopReasonOperator = "OPERATOR"
	StopReasonCharger  = "CHARGER"
)
