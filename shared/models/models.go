package models

import (
	"time"
)

type ExperienceLevel string

const (
	LevelExplorer ExperienceLevel = "explorer"
	LevelAspiring ExperienceLevel = "aspiring"
	LevelPro      ExperienceLevel = "pro"
)

func (l ExperienceLevel) Valid() bool {
	switch l {
	case LevelExplorer, LevelAspiring, LevelPro:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Blocking reports whether a booking in this status holds its date range.
func (s BookingStatus) Blocking() bool {
	return s == BookingConfirmed || s == BookingActive
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingActive, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

type Product struct {
	ID              string            `json:"id" validate:"required"`
	Name            string            `json:"name" validate:"required"`
	Description     string            `json:"description" validate:"required"`
	Category        string            `json:"category" validate:"required"`
	Subcategory     string            `json:"subcategory"`
	Price           int               `json:"price"`
	WeeklyPrice     int               `json:"weeklyPrice" validate:"gt=0"`
	MonthlyPrice    int               `json:"monthlyPrice" validate:"gte=0"`
	Image           string            `json:"image"`
	Images          []string          `json:"images"`
	Features        []string          `json:"features"`
	Included        []string          `json:"included"`
	Specs           map[string]string `json:"specs"`
	ExperienceLevel ExperienceLevel   `json:"experienceLevel" validate:"oneof=explorer aspiring pro"`
	Tags            []string          `json:"tags"`
	Available       bool              `json:"available"`
	Rating          float64           `json:"rating"`
	ReviewCount     int               `json:"reviewCount"`
	Featured        bool              `json:"featured,omitempty"`

	// Spreadsheet-only columns
	Brand             string   `json:"brand,omitempty"`
	Model             string   `json:"model,omitempty"`
	Condition         string   `json:"condition,omitempty"`
	Discount          float64  `json:"discount,omitempty"`
	DiscountType      string   `json:"discountType,omitempty"`
	Tax               float64  `json:"tax,omitempty"`
	TaxType           string   `json:"taxType,omitempty"`
	UnitOfMeasurement string   `json:"unitOfMeasurement,omitempty"`
	StockQuantity     int      `json:"stockQuantity,omitempty"`
	SecurityDeposit   int      `json:"securityDeposit,omitempty"`
	Insurance         int      `json:"insurance,omitempty"`
	MinimumRentalDays int      `json:"minimumRentalDays,omitempty" validate:"gte=0"`
	MaximumRentalDays int      `json:"maximumRentalDays,omitempty" validate:"gte=0"`
	DeliveryOptions   []string `json:"deliveryOptions,omitempty"`
	Restrictions      []string `json:"restrictions,omitempty"`
}

type Booking struct {
	ID                  string        `json:"id"`
	UserID              string        `json:"userId"`
	ProductID           string        `json:"productId"`
	StartDate           string        `json:"startDate"`
	EndDate             string        `json:"endDate"`
	Duration            int           `json:"duration"`
	TotalPrice          int           `json:"totalPrice"`
	Status              BookingStatus `json:"status"`
	DeliveryAddress     string        `json:"deliveryAddress"`
	PhoneNumber         string        `json:"phoneNumber,omitempty"`
	EmergencyContact    string        `json:"emergencyContact,omitempty"`
	SpecialInstructions string        `json:"specialInstructions,omitempty"`
	ReminderSent        bool          `json:"reminderSent,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Pincode   string    `json:"pincode,omitempty"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// Credential is stored apart from the user profile so profile reads never
// carry the password hash.
type Credential struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

type LeadSource string

const (
	LeadCapture        LeadSource = "lead_capture"
	LeadContact        LeadSource = "contact"
	LeadProductRequest LeadSource = "product_request"
)

type Lead struct {
	ID        string     `json:"id"`
	Source    LeadSource `json:"source"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Message   string     `json:"message,omitempty"`
	Interests []string   `json:"interests,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`

	// Product request details
	ProductName string `json:"productName,omitempty"`
	Category    string `json:"category,omitempty"`
	Budget      string `json:"budget,omitempty"`
	Timeline    string `json:"timeline,omitempty"`
}

// API Request/Response structs
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Pincode  string `json:"pincode"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type UpdateProfileRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Pincode *string `json:"pincode"`
}

type BookingRequest struct {
	ProductID           string `json:"productId" binding:"required"`
	StartDate           string `json:"startDate" binding:"required"`
	EndDate             string `json:"endDate" binding:"required"`
	PhoneNumber         string `json:"phoneNumber" binding:"required"`
	DeliveryAddress     string `json:"deliveryAddress" binding:"required"`
	EmergencyContact    string `json:"emergencyContact"`
	SpecialInstructions string `json:"specialInstructions"`
}

type UpdateStatusRequest struct {
	Status BookingStatus `json:"status" binding:"required"`
}

type LeadRequest struct {
	Name      string   `json:"name" binding:"required"`
	Email     string   `json:"email" binding:"required,email"`
	Phone     string   `json:"phone" binding:"required"`
	Message   string   `json:"message"`
	Interests []string `json:"interests"`
}

type ProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone" binding:"required"`
	ProductName string `json:"productName" binding:"required"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Budget      string `json:"budget"`
	Timeline    string `json:"timeline"`
}

// ConfirmationRequest is the relay payload for booking confirmation mail.
type ConfirmationRequest struct {
	Booking *Booking `json:"booking"`
	Product *Product `json:"product"`
	User    *User    `json:"user"`
}

type TestEmailRequest struct {
	Email string `json:"email"`
}
