// Package client provides the API client for interacting with the escrow API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/services"
	"github.com/agencyos/escrow/internal/types"
	"github.com/agencyos/escrow/pkg/api/v1/handlers"
	"github.com/agencyos/escrow/pkg/api/v1/routes"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for the escrow API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (map[string]string, error)

	// Business Endpoints
	RegisterBusiness(ctx context.Context, req types.RegisterBusinessRequest) (*models.Business, error)

	// Agency Endpoints
	RegisterAgency(ctx context.Context, req types.RegisterAgencyRequest) (*models.Agency, error)
	CreateAgencyAccount(ctx context.Context, agencyID uint) (string, error)
	CreateOnboardingLink(ctx context.Context, agencyID uint, req types.OnboardingLinkRequest) (string, error)

	// Job Endpoints
	CreateJob(ctx context.Context, actorID uint, req types.CreateJobRequest) (*models.Job, error)
	GetJob(ctx context.Context, actorID, jobID uint) (*services.JobDetail, error)
	GetLedger(ctx context.Context, actorID, jobID uint) ([]models.LedgerEntry, error)
	ListJobs(ctx context.Context, actorID uint, queryParams url.Values) ([]models.Job, error)

	// Job Lifecycle Endpoints
	InviteAgency(ctx context.Context, actorID, jobID, agencyID uint) (*models.Job, error)
	FundJob(ctx context.Context, actorID, jobID uint) (*services.FundingResult, error)
	ReleasePayout(ctx context.Context, actorID, jobID uint) (*models.JobPayout, error)
	JobAction(ctx context.Context, actorID, jobID uint, routeName string) (*models.Job, error)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate the base URL
	_, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	return &APIClient{
		baseURL: opts.BaseURL,
		timeout: opts.Timeout,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, actorID uint, body interface{}) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodPut:
		agent = fiber.Put(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")
	if actorID != 0 {
		agent.Set(handlers.HeaderActorID, strconv.FormatUint(uint64(actorID), 10))
	}

	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// doRequest sends the HTTP request and decodes the slug response's data field
// into v
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	var slugResponse types.SlugResponse
	if err := json.Unmarshal(body, &slugResponse); err != nil {
		// Not a slug response (e.g. the health endpoint)
		if statusCode >= 200 && statusCode < 300 && v != nil {
			return json.Unmarshal(body, v)
		}
		return &fiber.Error{Code: statusCode, Message: string(body)}
	}

	if statusCode < 200 || statusCode >= 300 || slugResponse.Slug != types.SuccessSlug {
		msg := slugResponse.Error
		if msg == "" {
			msg = string(body)
		}
		return &fiber.Error{Code: statusCode, Message: msg}
	}

	if v != nil && slugResponse.Data != nil {
		dataJSON, err := json.Marshal(slugResponse.Data)
		if err != nil {
			return fmt.Errorf("error marshaling data: %w", err)
		}
		return json.Unmarshal(dataJSON, v)
	}
	return nil
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, actorID uint, body, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, actorID, body)
	if err != nil {
		return err
	}
	return c.doRequest(agent, response)
}

// HealthCheck checks the API server health
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	var response map[string]string
	err := c.executeRequest(ctx, http.MethodGet, routes.HealthCheckURL(), 0, nil, &response)
	return response, err
}

// RegisterBusiness creates a business
func (c *APIClient) RegisterBusiness(ctx context.Context, req types.RegisterBusinessRequest) (*models.Business, error) {
	var business models.Business
	err := c.executeRequest(ctx, http.MethodPost, routes.RegisterBusinessURL(), 0, req, &business)
	if err != nil {
		return nil, err
	}
	return &business, nil
}

// RegisterAgency creates an agency
func (c *APIClient) RegisterAgency(ctx context.Context, req types.RegisterAgencyRequest) (*models.Agency, error) {
	var agency models.Agency
	err := c.executeRequest(ctx, http.MethodPost, routes.RegisterAgencyURL(), 0, req, &agency)
	if err != nil {
		return nil, err
	}
	return &agency, nil
}

// CreateAgencyAccount creates the agency's connected merchant account
func (c *APIClient) CreateAgencyAccount(ctx context.Context, agencyID uint) (string, error) {
	var response struct {
		MerchantAccountID string `json:"merchant_account_id"`
	}
	endpoint := routes.CreateAgencyAccountURL(formatID(agencyID))
	if err := c.executeRequest(ctx, http.MethodPost, endpoint, 0, nil, &response); err != nil {
		return "", err
	}
	return response.MerchantAccountID, nil
}

// CreateOnboardingLink requests a fresh onboarding URL for the agency
func (c *APIClient) CreateOnboardingLink(ctx context.Context, agencyID uint, req types.OnboardingLinkRequest) (string, error) {
	var response struct {
		OnboardingURL string `json:"onboarding_url"`
	}
	endpoint := routes.CreateAgencyOnboardLinkURL(formatID(agencyID))
	if err := c.executeRequest(ctx, http.MethodPost, endpoint, 0, req, &response); err != nil {
		return "", err
	}
	return response.OnboardingURL, nil
}

// CreateJob creates a draft job owned by the acting business
func (c *APIClient) CreateJob(ctx context.Context, actorID uint, req types.CreateJobRequest) (*models.Job, error) {
	var job models.Job
	err := c.executeRequest(ctx, http.MethodPost, routes.CreateJobURL(), actorID, req, &job)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob retrieves a job's detail view
func (c *APIClient) GetJob(ctx context.Context, actorID, jobID uint) (*services.JobDetail, error) {
	var detail services.JobDetail
	err := c.executeRequest(ctx, http.MethodGet, routes.GetJobURL(formatID(jobID)), actorID, nil, &detail)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetLedger retrieves a job's audit trail in causal order
func (c *APIClient) GetLedger(ctx context.Context, actorID, jobID uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := c.executeRequest(ctx, http.MethodGet, routes.GetJobLedgerURL(formatID(jobID)), actorID, nil, &entries)
	return entries, err
}

// ListJobs retrieves a page of the actor's jobs
func (c *APIClient) ListJobs(ctx context.Context, actorID uint, queryParams url.Values) ([]models.Job, error) {
	var jobs []models.Job
	err := c.executeRequest(ctx, http.MethodGet, routes.GetJobsURL(queryParams), actorID, nil, &jobs)
	return jobs, err
}

// InviteAgency invites an agency to a draft job
func (c *APIClient) InviteAgency(ctx context.Context, actorID, jobID, agencyID uint) (*models.Job, error) {
	var job models.Job
	endpoint := routes.JobActionURL(routes.InviteAgency, formatID(jobID))
	req := types.InviteAgencyRequest{AgencyID: agencyID}
	if err := c.executeRequest(ctx, http.MethodPost, endpoint, actorID, req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// FundJob creates a funding intent for the job
func (c *APIClient) FundJob(ctx context.Context, actorID, jobID uint) (*services.FundingResult, error) {
	var result services.FundingResult
	endpoint := routes.JobActionURL(routes.FundJob, formatID(jobID))
	if err := c.executeRequest(ctx, http.MethodPost, endpoint, actorID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReleasePayout releases the escrowed funds of an approved job
func (c *APIClient) ReleasePayout(ctx context.Context, actorID, jobID uint) (*models.JobPayout, error) {
	var payout models.JobPayout
	endpoint := routes.JobActionURL(routes.ReleasePayout, formatID(jobID))
	if err := c.executeRequest(ctx, http.MethodPost, endpoint, actorID, nil, &payout); err != nil {
		return nil, err
	}
	return &payout, nil
}

// JobAction invokes one of the bodyless lifecycle endpoints by route name
// (routes.AcceptJob, routes.StartWork, routes.SubmitWork, routes.ApproveWork,
// routes.RequestRevision, routes.ConfirmFunding, routes.CancelJob,
// routes.RefundJob, routes.ReconcileJob)
func (c *APIClient) JobAction(ctx context.Context, actorID, jobID uint, routeName string) (*models.Job, error) {
	var job models.Job
	endpoint := routes.JobActionURL(routeName, formatID(jobID))
	if err := c.executeRequest(ctx, http.MethodPost, endpoint, actorID, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
