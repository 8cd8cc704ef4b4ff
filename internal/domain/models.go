package domain

import "time"

const (
	RoleOwner    = "owner"
	RoleEmployee = "employee"
)

type PaymentMode string

const (
	PaymentFullCash   PaymentMode = "FULL_CASH"
	PaymentFullOnline PaymentMode = "FULL_ONLINE"
	PaymentFullUdhar  PaymentMode = "FULL_UDHAR"
	PaymentHybrid     PaymentMode = "HYBRID"
)

type CreditStatus string

const (
	CreditPending CreditStatus = "PENDING"
	CreditSettled CreditStatus = "SETTLED"
)

const (
	CreditModeCash   = "cash"
	CreditModeOnline = "online"
)

const (
	SalaryTypeManual = "manual"
	SalaryTypeLabour = "labour"

	SalaryPeriodDay    = "day"
	SalaryPeriodMonth  = "month"
	SalaryPeriodLabour = "labour"
)

// Actor is the authenticated principal a request runs as.
type Actor struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	ShopID string `json:"shop_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

type Shop struct {
	ID          string    `bson:"_id" json:"id"`
	Code        string    `bson:"code" json:"code"`
	Name        string    `bson:"name" json:"name"`
	Type        string    `bson:"type" json:"type"`
	GSTNumber   string    `bson:"gst_number" json:"gst_number"`
	OwnerID     string    `bson:"owner_id" json:"owner_id"`
	OwnerMobile string    `bson:"owner_mobile" json:"owner_mobile"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

type User struct {
	ID            string    `bson:"_id" json:"id"`
	Role          string    `bson:"role" json:"role"`
	Name          string    `bson:"name" json:"name"`
	Email         string    `bson:"email,omitempty" json:"email,omitempty"`
	PhoneNumber   string    `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	ShopID        string    `bson:"shop_id,omitempty" json:"shop_id,omitempty"`
	EmployeeID    string    `bson:"employee_id,omitempty" json:"employee_id,omitempty"`
	PasswordHash  string    `bson:"password_hash,omitempty" json:"-"`
	GoogleSubject string    `bson:"google_subject,omitempty" json:"-"`
	SalaryDue     float64   `bson:"salary_due" json:"salary_due"`
	IsActive      bool      `bson:"is_active" json:"is_active"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

type LabourDetail struct {
	EmployeeID   string  `bson:"employee_id" json:"employee_id"`
	EmployeeName string  `bson:"-" json:"employee_name,omitempty"`
	LabourCost   float64 `bson:"labour_cost" json:"labour_cost"`
}

type InventoryItem struct {
	ID                       string         `bson:"_id" json:"id"`
	ShopID                   string         `bson:"shop_id" json:"shop_id"`
	ItemName                 string         `bson:"item_name" json:"item_name"`
	TotalStockUnits          float64        `bson:"total_stock_units" json:"total_stock_units"`
	MaterialCost             float64        `bson:"material_cost" json:"material_cost"`
	FuelCost                 float64        `bson:"fuel_cost" json:"fuel_cost"`
	LabourDetails            []LabourDetail `bson:"labour_details" json:"labour_details"`
	CostOfLabour             float64        `bson:"cost_of_labour" json:"cost_of_labour"`
	TotalCost                float64        `bson:"total_cost" json:"total_cost"`
	CostPerUnit              float64        `bson:"cost_per_unit" json:"cost_per_unit"`
	ProfitPerUnit            float64        `bson:"profit_per_unit" json:"profit_per_unit"`
	FinalSellingPricePerUnit float64        `bson:"final_selling_price_per_unit" json:"final_selling_price_per_unit"`
	CreatedBy                string         `bson:"created_by" json:"created_by"`
	CreatedAt                time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt                time.Time      `bson:"updated_at" json:"updated_at"`
}

type PaymentSplit struct {
	Cash   float64 `bson:"cash" json:"cash"`
	Online float64 `bson:"online" json:"online"`
	Udhar  float64 `bson:"udhar" json:"udhar"`
}

type Bill struct {
	ID             string         `bson:"_id" json:"id"`
	ShopID         string         `bson:"shop_id" json:"shop_id"`
	BillNumber     string         `bson:"bill_number" json:"bill_number"`
	Items          []BillLineItem `bson:"-" json:"items"`
	ItemIDs        []string       `bson:"item_ids" json:"-"`
	TotalAmount    float64        `bson:"total_amount" json:"total_amount"`
	PaymentMode    PaymentMode    `bson:"payment_mode" json:"payment_mode"`
	PaymentSplit   PaymentSplit   `bson:"payment_split" json:"payment_split"`
	CustomerName   string         `bson:"customer_name" json:"customer_name"`
	CustomerMobile string         `bson:"customer_mobile,omitempty" json:"customer_mobile,omitempty"`
	CreatedBy      string         `bson:"created_by" json:"created_by"`
	CreatedAt      time.Time      `bson:"created_at" json:"created_at"`
}

type BillLineItem struct {
	ID              string    `bson:"_id" json:"id"`
	BillID          string    `bson:"bill_id" json:"bill_id"`
	ShopID          string    `bson:"shop_id" json:"shop_id"`
	InventoryItemID string    `bson:"inventory_item_id,omitempty" json:"inventory_item_id,omitempty"`
	ManualItem      bool      `bson:"manual_item" json:"manual_item"`
	Name            string    `bson:"name" json:"name"`
	Qty             float64   `bson:"qty" json:"qty"`
	Rate            float64   `bson:"rate" json:"rate"`
	Fare            float64   `bson:"fare" json:"fare"`
	Subtotal        float64   `bson:"subtotal" json:"subtotal"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

type CreditPayment struct {
	Amount    float64   `bson:"amount" json:"amount"`
	Mode      string    `bson:"mode" json:"mode"`
	CreatedBy string    `bson:"created_by" json:"created_by"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type CreditEntry struct {
	ID             string          `bson:"_id" json:"id"`
	ShopID         string          `bson:"shop_id" json:"shop_id"`
	BillID         string          `bson:"bill_id" json:"bill_id"`
	BillNumber     string          `bson:"bill_number" json:"bill_number"`
	CustomerName   string          `bson:"customer_name" json:"customer_name"`
	CustomerMobile string          `bson:"customer_mobile" json:"customer_mobile"`
	OriginalAmount float64         `bson:"original_amount" json:"original_amount"`
	PendingAmount  float64         `bson:"pending_amount" json:"pending_amount"`
	SettledAmount  float64         `bson:"settled_amount" json:"settled_amount"`
	Payments       []CreditPayment `bson:"payments" json:"payments"`
	Status         CreditStatus    `bson:"status" json:"status"`
	Version        int64           `bson:"version" json:"-"`
	CreatedBy      string          `bson:"created_by" json:"created_by"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`
}

type SalaryEntry struct {
	ID            string    `bson:"_id" json:"id"`
	ShopID        string    `bson:"shop_id" json:"shop_id"`
	EmployeeID    string    `bson:"employee_id" json:"employee_id"`
	Amount        float64   `bson:"amount" json:"amount"`
	Type          string    `bson:"type" json:"type"`
	Period        string    `bson:"period" json:"period"`
	EffectiveDate time.Time `bson:"effective_date" json:"effective_date"`
	CreatedBy     string    `bson:"created_by" json:"created_by"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

type BillItemInput struct {
	InventoryItemID string  `json:"inventory_item_id,omitempty"`
	ManualItem      bool    `json:"manual_item,omitempty"`
	Name            string  `json:"name,omitempty"`
	Qty             float64 `json:"qty"`
	Rate            float64 `json:"rate,omitempty"`
	Fare            float64 `json:"fare,omitempty"`
}

type BillCreateRequest struct {
	Items          []BillItemInput `json:"items"`
	PaymentSplit   PaymentSplit    `json:"payment_split"`
	CustomerName   string          `json:"customer_name"`
	CustomerMobile string          `json:"customer_mobile,omitempty"`
}

type BillListQuery struct {
	StartDate string
	EndDate   string
	Limit     int
}

type BillListResponse struct {
	Bills []Bill `json:"bills"`
}

type CreditPaymentRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Mode   string  `json:"mode" binding:"required,oneof=cash online"`
}

type CreditListQuery struct {
	Status         string
	CustomerMobile string
	Limit          int
}

type CreditListResponse struct {
	Entries []CreditEntry `json:"entries"`
}

type CreditCustomerResponse struct {
	CustomerMobile string        `json:"customer_mobile"`
	TotalPending   float64       `json:"total_pending"`
	Entries        []CreditEntry `json:"entries"`
}

type CreditSummary struct {
	TotalPending  float64 `json:"total_pending"`
	CustomerCount int     `json:"customer_count"`
	EntryCount    int     `json:"entry_count"`
}

type LabourDetailInput struct {
	EmployeeID string  `json:"employee_id"`
	LabourCost float64 `json:"labour_cost"`
}

type InventoryItemCreateRequest struct {
	ItemName        string              `json:"item_name"`
	TotalStockUnits float64             `json:"total_stock_units"`
	MaterialCost    float64             `json:"material_cost"`
	FuelCost        float64             `json:"fuel_cost"`
	ProfitPerUnit   float64             `json:"profit_per_unit"`
	LabourDetails   []LabourDetailInput `json:"labour_details"`
}

type InventoryItemUpdateRequest struct {
	ItemName        *string              `json:"item_name,omitempty"`
	TotalStockUnits *float64             `json:"total_stock_units,omitempty"`
	MaterialCost    *float64             `json:"material_cost,omitempty"`
	FuelCost        *float64             `json:"fuel_cost,omitempty"`
	ProfitPerUnit   *float64             `json:"profit_per_unit,omitempty"`
	LabourDetails   *[]LabourDetailInput `json:"labour_details,omitempty"`
}

type InventoryListResponse struct {
	Items []InventoryItem `json:"items"`
	Limit int             `json:"limit"`
}

type ShopRegisterRequest struct {
	Name        string `json:"name" binding:"required"`
	Type        string `json:"type" binding:"required"`
	GSTNumber   string `json:"gst_number" binding:"required"`
	OwnerMobile string `json:"owner_mobile" binding:"required"`
}

type ShopUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Type        *string `json:"type,omitempty"`
	OwnerMobile *string `json:"owner_mobile,omitempty"`
}

type ProfileUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

type Profile struct {
	User User  `json:"user"`
	Shop *Shop `json:"shop,omitempty"`
}

type EmployeeUpsertRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty" binding:"omitempty,email"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Password    string `json:"password" binding:"required,min=6"`
}

type EmployeeUpsertResponse struct {
	Employee User   `json:"employee"`
	ShopCode string `json:"shop_code"`
}

type EmployeeListResponse struct {
	Employees []User `json:"employees"`
}

type SalaryAccrualRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Period string  `json:"period,omitempty"`
}

type SalaryPaymentRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type SalaryResponse struct {
	EmployeeID string  `json:"employee_id"`
	SalaryDue  float64 `json:"salary_due"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type EmployeeLoginRequest struct {
	ShopCode   string `json:"shop_code" binding:"required"`
	EmployeeID string `json:"employee_id" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	User        User   `json:"user"`
}

// GoogleIdentity is the verified subset of an owner's identity token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

type SalesTotals struct {
	Bills  int     `json:"bills"`
	Cash   float64 `json:"cash"`
	Online float64 `json:"online"`
	Udhar  float64 `json:"udhar"`
	Total  float64 `json:"total"`
}

type SalesCard struct {
	Key          string  `json:"key"`
	Title        string  `json:"title"`
	TotalRevenue float64 `json:"total_revenue"`
	BillCount    int     `json:"bill_count"`
}

type SalesPoint struct {
	Date      string  `json:"date"`
	Revenue   float64 `json:"revenue"`
	BillCount int     `json:"bill_count"`
}

type SalesSummary struct {
	Cards []SalesCard  `json:"cards"`
	Chart []SalesPoint `json:"chart"`
}

type RevenueBreakdown struct {
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	Totals    SalesTotals `json:"totals"`
}

type TopItem struct {
	Name         string  `bson:"_id" json:"name"`
	QuantitySold float64 `bson:"quantity_sold" json:"quantity_sold"`
	Revenue      float64 `bson:"revenue" json:"revenue"`
}

type TopItemsResponse struct {
	Items []TopItem `json:"items"`
}

type SalaryTotals struct {
	SalaryDue     float64 `json:"salary_due"`
	ManualSalary  float64 `json:"manual_salary"`
	LabourAccrual float64 `json:"labour_accrual"`
}

type SalarySummary struct {
	SalaryTotals
	TotalExpense float64 `json:"total_expense"`
	Year         int     `json:"year"`
}

// ItemPerformance feeds the inventory export.
type ItemPerformance struct {
	Item      InventoryItem
	UnitsSold float64
	Revenue   float64
}

// BillReport is the data behind a bill workbook. Credits are keyed by bill
// id and BilledBy maps user ids to display names.
type BillReport struct {
	Title    string
	Filename string
	Detailed bool
	Bills    []Bill
	Credits  map[string]CreditEntry
	BilledBy map[string]string
}
