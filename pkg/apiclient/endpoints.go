package apiclient

import "strconv"

// Server paths. Paths ending in "/" must keep the slash; the backend
// redirects otherwise, and redirects drop the request body.
const (
	EndpointLogin           = "/api/auth/login/"
	EndpointSendOTP         = "/api/v1/auth/otp/send/"
	EndpointVerifyOTP       = "/api/v1/auth/otp/verify/"
	EndpointResetPassword   = "/api/v1/auth/reset-password/"
	EndpointRegisterCompany = "/api/register-company/"
	EndpointDashboardStats  = "/api/dashboard/stats"
	EndpointProducts        = "/api/v1/products/"
	EndpointCustomers       = "/api/v1/customers/"
	EndpointCategories      = "/api/v1/categories/"
	EndpointInvoices        = "/api/v1/invoices/"
	EndpointReturns         = "/api/v1/returns/"
	EndpointPayments        = "/api/v1/payments/"
	EndpointArchiveProducts = "/api/v1/products/?archived=true"
	EndpointArchiveCustomer = "/api/v1/customers/?archived=true"
	EndpointCompanyProfile  = "/api/v1/company-profile/"
	EndpointUsers           = "/api/v1/users/"
)

func resource(base string, id int64, action string) string {
	p := base + strconv.FormatInt(id, 10) + "/"
	if action != "" {
		p += action + "/"
	}
	return p
}

func ProductDetail(id int64) string  { return resource(EndpointProducts, id, "") }
func ProductArchive(id int64) string { return resource(EndpointProducts, id, "archive") }
func ProductRestore(id int64) string { return resource(EndpointProducts, id, "restore") }

func CustomerDetail(id int64) string  { return resource(EndpointCustomers, id, "") }
func CustomerArchive(id int64) string { return resource(EndpointCustomers, id, "archive") }
func CustomerRestore(id int64) string { return resource(EndpointCustomers, id, "restore") }

func InvoiceDetail(id int64) string  { return resource(EndpointInvoices, id, "") }
func InvoiceConfirm(id int64) string { return resource(EndpointInvoices, id, "confirm") }

func ReturnDetail(id int64) string  { return resource(EndpointReturns, id, "") }
func ReturnApprove(id int64) string { return resource(EndpointReturns, id, "approve") }
func ReturnReject(id int64) string  { return resource(EndpointReturns, id, "reject") }
