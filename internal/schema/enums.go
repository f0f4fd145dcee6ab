package schema

type Role string

const (
	RoleLearner Role = "learner"
	RoleExpert  Role = "expert"
)

func (r Role) Valid() bool {
	switch r {
	case RoleLearner, RoleExpert:
		return true
	}
	return false
}

type SlotState string

const (
	SlotOpen    SlotState = "open"
	SlotHeld    SlotState = "held"
	SlotBooked  SlotState = "booked"
	SlotBlocked SlotState = "blocked"
)

type BookingStatus string

const (
	BookingPending              BookingStatus = "pending"
	BookingAwaitingConfirmation BookingStatus = "awaiting_confirmation"
	BookingConfirmed            BookingStatus = "confirmed"
	BookingCompleted            BookingStatus = "completed"
	BookingCancelled            BookingStatus = "cancelled"
	BookingRefunded             BookingStatus = "refunded"
	BookingNoShow               BookingStatus = "no_show"
)

// IsTerminal reports whether no further transition may leave the status.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingCompleted, BookingCancelled, BookingRefunded, BookingNoShow:
		return true
	}
	return false
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingAwaitingConfirmation, BookingConfirmed,
		BookingCompleted, BookingCancelled, BookingRefunded, BookingNoShow:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentRequiresCapture PaymentStatus = "requires_capture"
	PaymentPaid            PaymentStatus = "paid"
	PaymentRefunded        PaymentStatus = "refunded"
	PaymentCancelled       PaymentStatus = "cancelled"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

type NotificationType string

const (
	NotifBookingCreated              NotificationType = "BOOKING_CREATED"
	NotifBookingAwaitingConfirmation NotificationType = "BOOKING_AWAITING_CONFIRMATION"
	NotifBookingAccepted             NotificationType = "BOOKING_ACCEPTED"
	NotifBookingConfirmedICS         NotificationType = "BOOKING_CONFIRMED_ICS"
	NotifBookingDeclined             NotificationType = "BOOKING_DECLINED"
	NotifBookingRejected             NotificationType = "BOOKING_REJECTED"
	NotifBookingProposed             NotificationType = "BOOKING_PROPOSED"
	NotifBookingCancelled            NotificationType = "BOOKING_CANCELLED"
	NotifBookingRefunded             NotificationType = "BOOKING_REFUNDED"
	NotifBookingNoShow               NotificationType = "BOOKING_NO_SHOW"
	NotifReminder24h                 NotificationType = "REMINDER_24H"
	NotifReminder1h                  NotificationType = "REMINDER_1H"
	NotifReminder5m                  NotificationType = "REMINDER_5M"
	NotifReviewRequest               NotificationType = "REVIEW_REQUEST"
)
