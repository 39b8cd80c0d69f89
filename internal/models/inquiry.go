// internal/models/inquiry.go
package models

// StatusNewInquiry is the status every inquiry is recorded with.
const StatusNewInquiry = "New inquiry"

// LedgerHeader is the first row of every year partition, in column order.
var LedgerHeader = []interface{}{
	"Date of inquiry",
	"Inquiry status",
	"Name",
	"Phone",
	"Email",
	"Message",
}

// InquiryRecord is one ledger row.
type InquiryRecord struct {
	SubmittedAt string `json:"submittedAt"` // formatted with the ledger date layout
	Status      string `json:"status"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Message     string `json:"message"`
}

// Row returns the record's values in LedgerHeader order.
func (r InquiryRecord) Row() []interface{} {
	return []interface{}{r.SubmittedAt, r.Status, r.Name, r.Phone, r.Email, r.Message}
}
