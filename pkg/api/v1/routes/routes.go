// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/agencyos/escrow/pkg/api/v1/handlers"
)

/*

To keep this file organized, routes should be organized in the following way:

1. Smallest scope first.
2. For similar scopes, put the endpoints in alphabetical order.
3. Order routes in GET, POST, PUT, DELETE order.
	a. Within this ordering, param urls (ie /:id) should go last, otherwise fiber will interpret the route slug as that param.
4. For clarity, naming should match the action (i.e. GetJob, FundJob).

*/

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIv1Prefix is the prefix for all API endpoints
	APIv1Prefix = "/api/v1"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route names for lookup
const (
	// Health check
	HealthCheck = "HealthCheck"

	// Agency routes
	GetAgency               = "GetAgency"
	GetAgencyAccountStatus  = "GetAgencyAccountStatus"
	RegisterAgency          = "RegisterAgency"
	CreateAgencyAccount     = "CreateAgencyAccount"
	CreateAgencyOnboardLink = "CreateAgencyOnboardLink"

	// Business routes
	GetBusiness      = "GetBusiness"
	RegisterBusiness = "RegisterBusiness"

	// Job routes
	GetDashboard = "GetDashboard"
	GetJobs      = "GetJobs"
	GetJob       = "GetJob"
	GetJobLedger = "GetJobLedger"
	CreateJob    = "CreateJob"

	// Job lifecycle routes
	InviteAgency    = "InviteAgency"
	AcceptJob       = "AcceptJob"
	FundJob         = "FundJob"
	ConfirmFunding  = "ConfirmFunding"
	StartWork       = "StartWork"
	SubmitWork      = "SubmitWork"
	ApproveWork     = "ApproveWork"
	RequestRevision = "RequestRevision"
	ReleasePayout   = "ReleasePayout"
	CancelJob       = "CancelJob"
	RefundJob       = "RefundJob"
	ReconcileJob    = "ReconcileJob"
)

// routeCache stores extracted routes for use prior to compilation
var (
	routeCache     map[string]string
	routeCacheMu   sync.RWMutex
	routeCacheInit sync.Once
)

// RegisterRoutes configures all the v1 routes
//
// NOTE: route ordering is important because routes will try and match in the
// order they are registered.
func RegisterRoutes(
	app *fiber.App,
	jobHandler *handlers.JobHandler,
	agencyHandler *handlers.AgencyHandler,
	businessHandler *handlers.BusinessHandler,
) {
	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	}).Name(HealthCheck)

	// API v1 routes
	v1 := app.Group(APIv1Prefix)

	// Agency endpoints
	agencies := v1.Group("/agencies")
	agencies.Get("/:id", agencyHandler.GetAgency).Name(GetAgency)
	agencies.Get("/:id/account", agencyHandler.GetAccountStatus).Name(GetAgencyAccountStatus)
	agencies.Post("/", agencyHandler.RegisterAgency).Name(RegisterAgency)
	agencies.Post("/:id/account", agencyHandler.CreateAccount).Name(CreateAgencyAccount)
	agencies.Post("/:id/onboarding-link", agencyHandler.CreateOnboardingLink).Name(CreateAgencyOnboardLink)

	// Business endpoints
	businesses := v1.Group("/businesses")
	businesses.Get("/:id", businessHandler.GetBusiness).Name(GetBusiness)
	businesses.Post("/", businessHandler.RegisterBusiness).Name(RegisterBusiness)

	// Job endpoints
	jobs := v1.Group("/jobs")
	jobs.Get("/", jobHandler.ListJobs).Name(GetJobs)
	jobs.Get("/dashboard", jobHandler.GetDashboard).Name(GetDashboard)
	jobs.Get("/:id", jobHandler.GetJob).Name(GetJob)
	jobs.Get("/:id/ledger", jobHandler.GetLedger).Name(GetJobLedger)
	jobs.Post("/", jobHandler.CreateJob).Name(CreateJob)

	// Job lifecycle endpoints, one per orchestrator operation
	jobs.Post("/:id/invite", jobHandler.InviteAgency).Name(InviteAgency)
	jobs.Post("/:id/accept", jobHandler.AcceptJob).Name(AcceptJob)
	jobs.Post("/:id/fund", jobHandler.FundJob).Name(FundJob)
	jobs.Post("/:id/confirm-funding", jobHandler.ConfirmFunding).Name(ConfirmFunding)
	jobs.Post("/:id/start", jobHandler.StartWork).Name(StartWork)
	jobs.Post("/:id/submit", jobHandler.SubmitWork).Name(SubmitWork)
	jobs.Post("/:id/approve", jobHandler.ApproveWork).Name(ApproveWork)
	jobs.Post("/:id/revision", jobHandler.RequestRevision).Name(RequestRevision)
	jobs.Post("/:id/payout", jobHandler.ReleasePayout).Name(ReleasePayout)
	jobs.Post("/:id/cancel", jobHandler.CancelJob).Name(CancelJob)
	jobs.Post("/:id/refund", jobHandler.RefundJob).Name(RefundJob)
	jobs.Post("/:id/reconcile", jobHandler.ReconcileJob).Name(ReconcileJob)
}

// initRouteCache initializes the route cache by creating a mock app and extracting routes
func initRouteCache() {
	routeCacheInit.Do(func() {
		routeCache = make(map[string]string)

		// Create a mock app
		app := fiber.New()

		// Create empty handlers for route registration
		mockJobHandler := &handlers.JobHandler{}
		mockAgencyHandler := &handlers.AgencyHandler{}
		mockBusinessHandler := &handlers.BusinessHandler{}

		RegisterRoutes(app, mockJobHandler, mockAgencyHandler, mockBusinessHandler)

		// Extract routes from the app
		for _, route := range app.GetRoutes() {
			if route.Name != "" {
				routeCache[route.Name] = route.Path
			}
		}
	})
}

// GetRoute returns the route pattern for the given route name
func GetRoute(name string) string {
	routeCacheMu.RLock()
	defer routeCacheMu.RUnlock()

	// Initialize cache if needed
	if routeCache == nil {
		routeCacheMu.RUnlock()
		initRouteCache()
		routeCacheMu.RLock()
	}

	return routeCache[name]
}

// BuildURL builds a URL for the given route name and parameters
func BuildURL(routeName string, params map[string]string, queryParams url.Values) string {
	route := GetRoute(routeName)
	if route == "" {
		return ""
	}

	// Replace parameters in the route
	for param, value := range params {
		route = strings.ReplaceAll(route, ":"+param, value)
	}

	// Remove trailing slash if it's a base endpoint with no parameters
	if strings.HasSuffix(route, "/") && !strings.Contains(route, ":") {
		route = strings.TrimSuffix(route, "/")
	}

	// Add query parameters if any
	if len(queryParams) > 0 {
		route = fmt.Sprintf("%s?%s", route, queryParams.Encode())
	}

	return route
}

// Health check route helper

// HealthCheckURL returns the URL for the health check endpoint
func HealthCheckURL() string {
	return BuildURL(HealthCheck, nil, nil)
}

// Agency route helpers

// GetAgencyURL returns the URL for getting an agency by ID
func GetAgencyURL(id string) string {
	return BuildURL(GetAgency, map[string]string{"id": id}, nil)
}

// GetAgencyAccountStatusURL returns the URL for checking onboarding status
func GetAgencyAccountStatusURL(id string) string {
	return BuildURL(GetAgencyAccountStatus, map[string]string{"id": id}, nil)
}

// RegisterAgencyURL returns the URL for registering an agency
func RegisterAgencyURL() string {
	return BuildURL(RegisterAgency, nil, nil)
}

// CreateAgencyAccountURL returns the URL for creating a connected account
func CreateAgencyAccountURL(id string) string {
	return BuildURL(CreateAgencyAccount, map[string]string{"id": id}, nil)
}

// CreateAgencyOnboardLinkURL returns the URL for creating an onboarding link
func CreateAgencyOnboardLinkURL(id string) string {
	return BuildURL(CreateAgencyOnboardLink, map[string]string{"id": id}, nil)
}

// Business route helpers

// GetBusinessURL returns the URL for getting a business by ID
func GetBusinessURL(id string) string {
	return BuildURL(GetBusiness, map[string]string{"id": id}, nil)
}

// RegisterBusinessURL returns the URL for registering a business
func RegisterBusinessURL() string {
	return BuildURL(RegisterBusiness, nil, nil)
}

// Job route helpers

// GetDashboardURL returns the URL for the escrow dashboard
func GetDashboardURL() string {
	return BuildURL(GetDashboard, nil, nil)
}

// GetJobsURL returns the URL for listing jobs
func GetJobsURL(queryParams url.Values) string {
	return BuildURL(GetJobs, nil, queryParams)
}

// GetJobURL returns the URL for getting a job by ID
func GetJobURL(id string) string {
	return BuildURL(GetJob, map[string]string{"id": id}, nil)
}

// GetJobLedgerURL returns the URL for a job's audit trail
func GetJobLedgerURL(id string) string {
	return BuildURL(GetJobLedger, map[string]string{"id": id}, nil)
}

// CreateJobURL returns the URL for creating a job
func CreateJobURL() string {
	return BuildURL(CreateJob, nil, nil)
}

// JobActionURL returns the URL for a lifecycle action on a job
func JobActionURL(routeName, id string) string {
	return BuildURL(routeName, map[string]string{"id": id}, nil)
}
