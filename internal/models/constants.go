package models

const (
	EventTypeAgora = "agora"
	EventTypeEPM   = "epm"
)

var EventTypes = []string{EventTypeAgora, EventTypeEPM}

const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
)

const (
	ParticipantDelegate = "delegate"
	ParticipantEnvoy    = "envoy"
	ParticipantObserver = "observer"
	ParticipantVisitor  = "visitor"
)

// ParticipantTypePriority is the order in which the allocator tries to place
// an applicant: the most senior type first.
var ParticipantTypePriority = []string{
	ParticipantDelegate,
	ParticipantEnvoy,
	ParticipantObserver,
	ParticipantVisitor,
}

const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusRejected = "rejected"
)

var ApplicationStatuses = []string{
	ApplicationStatusPending,
	ApplicationStatusAccepted,
	ApplicationStatusRejected,
}

const (
	MealsMeatEater  = "Meat-eater"
	MealsVegetarian = "Vegetarian"
	MealsVegan      = "Vegan"
)

var AllowedMeals = []string{MealsMeatEater, MealsVegetarian, MealsVegan}

const (
	QuestionTypeString   = "string"
	QuestionTypeText     = "text"
	QuestionTypeNumber   = "number"
	QuestionTypeSelect   = "select"
	QuestionTypeCheckbox = "checkbox"
)

var QuestionTypes = []string{
	QuestionTypeString,
	QuestionTypeText,
	QuestionTypeNumber,
	QuestionTypeSelect,
	QuestionTypeCheckbox,
}

const (
	CandidateStatusPending  = "pending"
	CandidateStatusApproved = "approved"
	CandidateStatusRejected = "rejected"
)

// Unlimited marks a pax limit column as having no cap.
const Unlimited = -1

// Body types that are expected to submit a members list for an Agora.
var MemberslistBodyTypes = []string{"antenna", "contact antenna", "contact"}
