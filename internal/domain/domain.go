package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

func (r ChatRole) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// ChatMessage is immutable once created. Slices of messages are append-only
// and their order is the render order.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type Trend string

const (
	TrendBullish Trend = "Bullish"
	TrendBearish Trend = "Bearish"
	TrendRanging Trend = "Ranging"
)

var Trends = []Trend{TrendBullish, TrendBearish, TrendRanging}

func (t Trend) Valid() bool {
	for _, v := range Trends {
		if t == v {
			return true
		}
	}
	return false
}

type TradeIdea string

const (
	TradeBuy  TradeIdea = "Buy"
	TradeSell TradeIdea = "Sell"
	TradeWait TradeIdea = "Wait"
)

var TradeIdeas = []TradeIdea{TradeBuy, TradeSell, TradeWait}

func (t TradeIdea) Valid() bool {
	for _, v := range TradeIdeas {
		if t == v {
			return true
		}
	}
	return false
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

var Confidences = []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}

func (c Confidence) Valid() bool {
	for _, v := range Confidences {
		if c == v {
			return true
		}
	}
	return false
}

type FactorStatus string

const (
	FactorVerified FactorStatus = "Verified"
	FactorDetected FactorStatus = "Detected"
	FactorPending  FactorStatus = "Pending"
)

var FactorStatuses = []FactorStatus{FactorVerified, FactorDetected, FactorPending}

func (s FactorStatus) Valid() bool {
	for _, v := range FactorStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ConfluenceFactor is only meaningful inside the TradeAnalysisResult that owns it.
type ConfluenceFactor struct {
	Factor   string       `json:"factor"`
	Strength int          `json:"strength"`
	Status   FactorStatus `json:"status"`
}

// UnmarshalJSON accepts a whole-number strength written as a float (88.0),
// which JSON Schema counts as an integer.
func (f *ConfluenceFactor) UnmarshalJSON(data []byte) error {
	type plain ConfluenceFactor
	var raw struct {
		plain
		Strength json.Number `json:"strength"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = ConfluenceFactor(raw.plain)
	f.Strength = 0
	if raw.Strength == "" {
		return nil
	}
	n, err := raw.Strength.Float64()
	if err != nil || n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
		return fmt.Errorf("confluence strength %s is not a whole number", raw.Strength)
	}
	f.Strength = int(n)
	return nil
}

// TradeAnalysisResult is created once per analysis request and never mutated.
// Price levels are opaque provider strings.
type TradeAnalysisResult struct {
	ID                 string             `json:"id"`
	Timestamp          time.Time          `json:"timestamp"`
	Pair               string             `json:"pair"`
	Trend              Trend              `json:"trend"`
	TradeIdea          TradeIdea          `json:"tradeIdea"`
	Entry              string             `json:"entry"`
	StopLoss           string             `json:"sl"`
	TakeProfit1        string             `json:"tp1"`
	TakeProfit2        string             `json:"tp2"`
	RiskReward         string             `json:"rr"`
	Reasoning          string             `json:"reasoning"`
	Confidence         Confidence         `json:"confidence"`
	ConfluenceFactors  []ConfluenceFactor `json:"confluenceFactors"`
	RecommendedLotSize string             `json:"recommendedLotSize,omitempty"`
}

type User struct {
	ID             string
	Email          string
	PasswordHash   string
	TelegramChatID *int64
	CreatedAt      time.Time
}

// Session is the read-only identity a client caches between auth events.
type Session struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AuthEventKind string

const (
	AuthSignedIn       AuthEventKind = "SIGNED_IN"
	AuthSignedOut      AuthEventKind = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	AuthUserUpdated    AuthEventKind = "USER_UPDATED"
)

type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}

type Instrument struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type ImageData struct {
	MimeType string
	Width    int
	Height   int
	Bytes    []byte
}
