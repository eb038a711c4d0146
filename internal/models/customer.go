package models

import (
	"strings"
	"time"
)

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusDeclined TransactionStatus = "declined"
	StatusUnknown  TransactionStatus = "unknown"
)

// NormalizeStatus lowercases a provider status. Values outside the known
// set pass through unvalidated.
func NormalizeStatus(providerStatus string) TransactionStatus {
	s := strings.ToLower(strings.TrimSpace(providerStatus))
	if s == "" {
		return StatusUnknown
	}
	return TransactionStatus(s)
}

// IsTerminal reports whether the provider has finished with the attempt.
// Anything other than pending or an unreported status counts as final.
func (s TransactionStatus) IsTerminal() bool {
	return s != StatusPending && s != StatusUnknown && s != ""
}

type Customer struct {
	ID             string            `json:"id" gorm:"primaryKey;type:varchar(64)"`
	FirstNames     string            `json:"nombres" gorm:"not null"`
	LastNames      string            `json:"apellidos" gorm:"not null"`
	Identification string            `json:"identificacion" gorm:"not null"`
	Email          string            `json:"correo_electronico" gorm:"not null"`
	Phone          string            `json:"telefono" gorm:"not null"`
	BirthDate      string            `json:"fecha_nacimiento"`
	Address        string            `json:"direccion"`
	City           string            `json:"ciudad"`
	Plan           PlanID            `json:"plan_seleccionado" gorm:"type:varchar(32);not null"`
	AmountInCents  int64             `json:"monto_pagado" gorm:"not null"`
	Reference      string            `json:"referencia_pago" gorm:"uniqueIndex;type:varchar(128);not null"`
	TransactionID  *string           `json:"id_transaccion_wompi" gorm:"type:varchar(128)"`
	Status         TransactionStatus `json:"estado_transaccion" gorm:"type:varchar(50);not null;default:pending"`
	// Version increments on every status write and guards compare-and-set updates.
	Version   int64     `json:"version" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstNames + " " + c.LastNames)
}

type CreateRegistrationRequest struct {
	FirstNames     string `json:"nombres" binding:"required"`
	LastNames      string `json:"apellidos" binding:"required"`
	Identification string `json:"identificacion" binding:"required"`
	Email          string `json:"correo_electronico" binding:"required,email"`
	Phone          string `json:"telefono" binding:"required"`
	BirthDate      string `json:"fecha_nacimiento" binding:"required"`
	Address        string `json:"direccion" binding:"required"`
	City           string `json:"ciudad" binding:"required"`
	Plan           PlanID `json:"plan_seleccionado" binding:"required"`
}

type RegistrationResponse struct {
	Customer      *Customer `json:"customer"`
	Reference     string    `json:"reference"`
	AmountInCents int64     `json:"amount_in_cents"`
	Currency      string    `json:"currency"`
	Signature     string    `json:"signature"`
	PublicKey     string    `json:"public_key"`
}

type IntegritySignatureRequest struct {
	Reference        string `json:"reference"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
}

type IntegritySignatureResponse struct {
	Signature        string `json:"signature"`
	Reference        string `json:"reference"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
}

type VerifyTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
}
