// Package message defines the payloads exchanged over the broker and the
// logic that tells them apart.
package message

// Kind names a payload schema.
type Kind string

const (
	KindInteraction  Kind = "interaction"
	KindFile         Kind = "file_operation"
	KindRegistration Kind = "registration"
	KindFieldUpdate  Kind = "field_update"
	KindRefill       Kind = "refill"
)

// Actions carried in the `action` field.
const (
	ActionLike            = "like"
	ActionDislike         = "dislike"
	ActionSearch          = "search"
	ActionUploadFile      = "upload_file"
	ActionShowFiles       = "show_files_user"
	ActionRegistration    = "user_registration"
	ActionProfileUpdate   = "profile_update"
	ActionUpdateProfileKV = "update_profile_redis"
)

// Refill request types.
const (
	RequestTypeSearch  = "search"
	RequestTypeLike    = "like"
	RequestTypeDislike = "dislike"
)

// Reply kinds.
const (
	ReplyKindCandidate = "candidate"
	ReplyKindPending   = "pending"
	ReplyKindFiles     = "files"
)

// Interaction is a like, dislike or search issued by a user.
type Interaction struct {
	UserID       int64  `json:"user_id"`
	Action       string `json:"action"`
	TargetUserID *int64 `json:"target_user_id,omitempty"`
}

// FileOperation asks to record an uploaded file or list the user's files.
type FileOperation struct {
	UserID   int64   `json:"user_id"`
	Action   string  `json:"action"`
	FileName *string `json:"file_name,omitempty"`
}

// RegistrationUser is the user part of a registration.
type RegistrationUser struct {
	UserID    int64   `json:"user_id"`
	Username  *string `json:"username,omitempty"`
	FirstName string  `json:"first_name"`
	Age       *int    `json:"age,omitempty"`
	Gender    *string `json:"gender,omitempty"`
	CityName  *string `json:"city_name,omitempty"`
}

// RegistrationProfile is the profile part of a registration.
type RegistrationProfile struct {
	UserID          int64   `json:"user_id"`
	Bio             *string `json:"bio,omitempty"`
	PhotoURL        *string `json:"photo_url,omitempty"`
	PreferredGender *string `json:"preferred_gender,omitempty"`
	PreferredAgeMin *int    `json:"preferred_age_min,omitempty"`
	PreferredAgeMax *int    `json:"preferred_age_max,omitempty"`
}

// Registration creates or refreshes a user together with its profile.
type Registration struct {
	User    RegistrationUser    `json:"user"`
	Profile RegistrationProfile `json:"profile"`
	Action  string              `json:"action"`
}

// FieldUpdate changes one user or profile field.
// Value is whatever the codec produced: string, any integer type,
// json.Number or a map for preferred_age_range.
type FieldUpdate struct {
	UserID   int64   `json:"user_id"`
	Field    string  `json:"field"`
	Value    any     `json:"value"`
	Username *string `json:"username,omitempty"`
	Action   string  `json:"action,omitempty"`
}

// RefillRequest asks the scoring engine to recompute a user's queue.
// RequestType stays within search/like/dislike for existing consumers;
// Reason carries the precise trigger.
type RefillRequest struct {
	UserID      int64  `json:"user_id"`
	Action      string `json:"action"`
	RequestType string `json:"request_type"`
	Reason      string `json:"reason,omitempty"`
}

// Reply is published back to the presentation layer on reply.<user_id>.
type Reply struct {
	UserID    int64       `json:"user_id"`
	Kind      string      `json:"kind"`
	Candidate any         `json:"candidate,omitempty"`
	Files     []FileEntry `json:"files,omitempty"`
}

// FileEntry is one row of a files reply.
type FileEntry struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
}
