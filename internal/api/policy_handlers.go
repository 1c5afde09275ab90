package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/trapeze-h2020/ledger-gateway/internal/ledger"
	"github.com/trapeze-h2020/ledger-gateway/internal/middleware"
	"github.com/trapeze-h2020/ledger-gateway/internal/validate"
)

// Ledger transaction names exposed by the trapeze chaincode namespace.
const (
	txInitLedger     = "InitLedger"
	txCreatePolicy   = "CreatePolicy"
	txGetAllPolicies = "GetAllPolicies"
	txReadPolicy     = "ReadPolicy"
	txUpdatePolicy   = "UpdatePolicy"
	txDeletePolicy   = "DeletePolicy"
)

// PolicyHandlers coordinates the per-request ledger lifecycle for the
// policy CRUD surface: open a session, bind the contract, dispatch one
// transaction, classify the outcome, release the session.
type PolicyHandlers struct {
	opener    ledger.Opener
	channel   string
	chaincode string
}

// NewPolicyHandlers creates a PolicyHandlers bound to a fixed channel and
// chaincode namespace.
func NewPolicyHandlers(opener ledger.Opener, channel, chaincode string) *PolicyHandlers {
	return &PolicyHandlers{
		opener:    opener,
		channel:   channel,
		chaincode: chaincode,
	}
}

// InitRequest is the request body for POST /init.
type InitRequest struct {
	UserID       string `json:"userID"`
	Organization string `json:"organization"`
}

// PolicyRequest is the request body for creating or updating a policy.
// The identifier is never part of the body: Create generates it, Update
// takes it from the URL.
type PolicyRequest struct {
	UserID               string         `json:"userID"`
	CreationDate         string         `json:"creationDate"`
	DataSubject          string         `json:"hasDataSubject"`
	PersonalDataCategory string         `json:"hasPersonalDataCategory"`
	Processing           string         `json:"hasProcessing"`
	Purpose              string         `json:"hasPurpose"`
	Recipient            string         `json:"hasRecipient"`
	Storage              ledger.Storage `json:"hasStorage"`
}

// policy builds the ledger policy for the given identifier.
func (req *PolicyRequest) policy(id string) *ledger.Policy {
	return &ledger.Policy{
		ID:                   id,
		CreationDate:         req.CreationDate,
		DataSubject:          req.DataSubject,
		PersonalDataCategory: req.PersonalDataCategory,
		Processing:           req.Processing,
		Purpose:              req.Purpose,
		Recipient:            req.Recipient,
		Storage:              req.Storage,
	}
}

// validateFields checks that every policy field is present and well-formed.
// Returns an error message for the first failing field, empty when valid.
func (req *PolicyRequest) validateFields() string {
	fields := []struct {
		name  string
		value string
	}{
		{"creationDate", req.CreationDate},
		{"hasDataSubject", req.DataSubject},
		{"hasPersonalDataCategory", req.PersonalDataCategory},
		{"hasProcessing", req.Processing},
		{"hasPurpose", req.Purpose},
		{"hasRecipient", req.Recipient},
		{"hasStorage.location", req.Storage.Location},
		{"hasStorage.duration", req.Storage.Duration},
	}
	for _, f := range fields {
		if _, err := validate.Field(f.value); err != nil {
			return fmt.Sprintf("%s: %v", f.name, err)
		}
	}
	return ""
}

// InitLedger handles POST /init - seeds the initial policy set.
func (h *PolicyHandlers) InitLedger(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	identity, ok := h.identity(w, r, req.UserID)
	if !ok {
		return
	}

	slog.InfoContext(r.Context(), "initializing ledger", "organization", req.Organization)

	sess, err := h.opener.Open(r.Context(), identity)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to set up the ledger")
		return
	}
	defer sess.Close()

	contract, err := sess.Contract(h.channel, h.chaincode)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to set up the ledger")
		return
	}

	if _, err := contract.Submit(r.Context(), txInitLedger); err != nil {
		h.writeLedgerError(w, r, err, "Failed to set up the ledger")
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, map[string]string{
		"message": fmt.Sprintf("Ledger initialized for organisation %s", req.Organization),
	})
}

// CreatePolicy handles POST /policies - records a new policy on the ledger.
// The policy identifier is generated here, never by the ledger network, and
// passed as an explicit argument to the write.
func (h *PolicyHandlers) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	identity, ok := h.identity(w, r, req.UserID)
	if !ok {
		return
	}
	if msg := req.validateFields(); msg != "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	sess, err := h.opener.Open(r.Context(), identity)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to record the policy on the ledger")
		return
	}
	defer sess.Close()

	contract, err := sess.Contract(h.channel, h.chaincode)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to record the policy on the ledger")
		return
	}

	policyID := uuid.New().String()
	policy := req.policy(policyID)

	if _, err := contract.Submit(r.Context(), txCreatePolicy, policy.Args()...); err != nil {
		h.writeLedgerError(w, r, err, "Failed to record the policy on the ledger")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]string{"policy": policyID})
}

// ListPolicies handles GET /policies - fetches all policies from the ledger.
func (h *PolicyHandlers) ListPolicies(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r, "")
	if !ok {
		return
	}

	sess, err := h.opener.Open(r.Context(), identity)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to fetch policies from the ledger")
		return
	}
	defer sess.Close()

	contract, err := sess.Contract(h.channel, h.chaincode)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to fetch policies from the ledger")
		return
	}

	raw, err := contract.Evaluate(r.Context(), txGetAllPolicies)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to fetch policies from the ledger")
		return
	}

	policies, err := ledger.DecodePolicies(raw)
	if err != nil {
		slog.ErrorContext(r.Context(), "malformed policies payload", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"policies": policies})
}

// GetPolicy handles GET /policies/{id} - fetches one policy from the ledger.
func (h *PolicyHandlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}
	identity, ok := h.identity(w, r, "")
	if !ok {
		return
	}

	sess, err := h.opener.Open(r.Context(), identity)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to fetch the policy from the ledger")
		return
	}
	defer sess.Close()

	contract, err := sess.Contract(h.channel, h.chaincode)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to fetch the policy from the ledger")
		return
	}

	raw, err := contract.Evaluate(r.Context(), txReadPolicy, policyID)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to fetch the policy from the ledger")
		return
	}

	policy, err := ledger.DecodePolicy(raw)
	if err != nil {
		slog.ErrorContext(r.Context(), "malformed policy payload", "id", policyID, "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"policy": policy})
}

// UpdatePolicy handles PUT /policies/{id} - overwrites a policy and returns
// the re-read result. The read is issued on the same session after the
// write committed; cross-peer read-your-own-write consistency is not
// guaranteed by the network.
func (h *PolicyHandlers) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}

	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	identity, ok := h.identity(w, r, req.UserID)
	if !ok {
		return
	}
	if msg := req.validateFields(); msg != "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	sess, err := h.opener.Open(r.Context(), identity)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to update the policy on the ledger")
		return
	}
	defer sess.Close()

	contract, err := sess.Contract(h.channel, h.chaincode)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to update the policy on the ledger")
		return
	}

	policy := req.policy(policyID)
	if _, err := contract.Submit(r.Context(), txUpdatePolicy, policy.Args()...); err != nil {
		h.writeLedgerError(w, r, err, "Failed to update the policy on the ledger")
		return
	}

	raw, err := contract.Evaluate(r.Context(), txReadPolicy, policyID)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to fetch the updated policy from the ledger")
		return
	}

	updated, err := ledger.DecodePolicy(raw)
	if err != nil {
		slog.ErrorContext(r.Context(), "malformed policy payload", "id", policyID, "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"policy": updated})
}

// DeletePolicy handles DELETE /policies/{id} - removes a policy from the
// ledger.
func (h *PolicyHandlers) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}
	identity, ok := h.identity(w, r, "")
	if !ok {
		return
	}

	sess, err := h.opener.Open(r.Context(), identity)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to delete the policy from the ledger")
		return
	}
	defer sess.Close()

	contract, err := sess.Contract(h.channel, h.chaincode)
	if err != nil {
		h.writeLedgerError(w, r, err, "Failed to delete the policy from the ledger")
		return
	}

	if _, err := contract.Submit(r.Context(), txDeletePolicy, policyID); err != nil {
		h.writeLedgerError(w, r, err, "Failed to delete the policy from the ledger")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Policy %s deleted", policyID),
	})
}

// identity resolves the caller's identity reference for this request. An
// authenticated identity recorded by the auth middleware takes precedence;
// otherwise the body userID, then the userID query parameter. A missing or
// malformed reference is rejected before any ledger interaction.
func (h *PolicyHandlers) identity(w http.ResponseWriter, r *http.Request, bodyUserID string) (string, bool) {
	ref := middleware.GetIdentity(r.Context())
	if ref == "" {
		ref = bodyUserID
	}
	if ref == "" {
		ref = r.URL.Query().Get("userID")
	}

	ref, err := validate.Identity(ref)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("userID: %v", err))
		return "", false
	}

	middleware.SetIdentity(r.Context(), ref)
	return ref, true
}

// policyID extracts and validates the {id} path segment.
func (h *PolicyHandlers) policyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := validate.PolicyID(r.PathValue("id"))
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("policy id: %v", err))
		return "", false
	}
	return id, true
}

// writeLedgerError maps a ledger failure to its HTTP tier. Failures before
// a session existed are infrastructure errors: logged in full, surfaced
// with a generic message. Failures after a successful open are business
// errors carrying the underlying detail.
func (h *PolicyHandlers) writeLedgerError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if ledger.IsInfrastructure(err) {
		slog.ErrorContext(r.Context(), "ledger request failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}
	WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeLedger, fmt.Sprintf("%s: %v", message, err))
}
