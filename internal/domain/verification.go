package domain

import "time"

// PendingVerification holds a registration awaiting its email OTP.
// PK: email. TTL is a Unix timestamp used as DynamoDB TTL so abandoned
// records disappear even if nobody retries.
type PendingVerification struct {
	Email     string    `json:"email" dynamodbav:"email"`
	FullName  string    `json:"full_name" dynamodbav:"full_name"`
	Contact   string    `json:"contact" dynamodbav:"contact"`
	BirthDate time.Time `json:"dob" dynamodbav:"dob"`
	OTPHash   string    `json:"-" dynamodbav:"otp_hash"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at"`
	TTL       int64     `json:"-" dynamodbav:"ttl"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,max=120"`
	Contact  string `json:"contact" validate:"required,max=32"`
	DOB      string `json:"dob" validate:"required,birthdate"`
}

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}
