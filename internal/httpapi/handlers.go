package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/export"
	"github.com/vivekyadav247/billmngapp-backend/internal/service"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

func (a *API) handleGetMe(c *gin.Context) {
	profile, err := a.service.GetMe(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (a *API) handleUpdateMe(c *gin.Context) {
	var req domain.ProfileUpdateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	profile, err := a.service.UpdateMe(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (a *API) handleRegisterShop(c *gin.Context) {
	var req domain.ShopRegisterRequest
	if !a.bindJSON(c, &req) {
		return
	}
	shop, err := a.service.RegisterShop(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, shop)
}

func (a *API) handleGetMyShop(c *gin.Context) {
	shop, err := a.service.GetMyShop(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

func (a *API) handleUpdateMyShop(c *gin.Context) {
	var req domain.ShopUpdateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	shop, err := a.service.UpdateMyShop(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

func (a *API) handleListEmployees(c *gin.Context) {
	resp, err := a.service.ListEmployees(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleUpsertEmployee(c *gin.Context) {
	var req domain.EmployeeUpsertRequest
	if !a.bindJSON(c, &req) {
		return
	}
	resp, err := a.service.UpsertEmployee(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleDeactivateEmployee(c *gin.Context) {
	if err := a.service.DeactivateEmployee(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleSalaryAccrual(c *gin.Context) {
	var req domain.SalaryAccrualRequest
	if !a.bindJSON(c, &req) {
		return
	}
	resp, err := a.service.AddSalaryAccrual(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleSalaryPayment(c *gin.Context) {
	var req domain.SalaryPaymentRequest
	if !a.bindJSON(c, &req) {
		return
	}
	resp, err := a.service.PayEmployee(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleSalaryEntries(c *gin.Context) {
	limit := parsePositiveLimit(c.Query("limit"), 50, 200)
	entries, err := a.service.ListSalaryEntries(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (a *API) handleListInventory(c *gin.Context) {
	resp, err := a.service.ListInventoryItems(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleGetInventory(c *gin.Context) {
	item, err := a.service.GetInventoryItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (a *API) handleCreateInventory(c *gin.Context) {
	var req domain.InventoryItemCreateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	item, err := a.service.CreateInventoryItem(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (a *API) handleUpdateInventory(c *gin.Context) {
	var req domain.InventoryItemUpdateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	item, err := a.service.UpdateInventoryItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (a *API) handleDeleteInventory(c *gin.Context) {
	if err := a.service.DeleteInventoryItem(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleCreateBill(c *gin.Context) {
	var req domain.BillCreateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	bill, err := a.service.CreateBill(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, bill)
}

func (a *API) handleListBills(c *gin.Context) {
	resp, err := a.service.ListBills(c.Request.Context(), domain.BillListQuery{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Limit:     parsePositiveLimit(c.Query("limit"), 20, 100),
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleGetBill(c *gin.Context) {
	bill, err := a.service.GetBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (a *API) handleListCredits(c *gin.Context) {
	resp, err := a.service.ListCredits(c.Request.Context(), domain.CreditListQuery{
		Status:         c.Query("status"),
		CustomerMobile: c.Query("customer_mobile"),
		Limit:          parsePositiveLimit(c.Query("limit"), 50, 200),
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleCreditSummary(c *gin.Context) {
	summary, err := a.service.CreditSummary(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (a *API) handleCreditsByCustomer(c *gin.Context) {
	resp, err := a.service.CreditsByCustomer(c.Request.Context(), c.Param("mobile"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handlePayCredit(c *gin.Context) {
	var req domain.CreditPaymentRequest
	if !a.bindJSON(c, &req) {
		return
	}
	entry, err := a.service.PayCredit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (a *API) handleSalesSummary(c *gin.Context) {
	summary, err := a.service.SalesSummary(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (a *API) handleRevenueBreakdown(c *gin.Context) {
	breakdown, err := a.service.RevenueBreakdown(c.Request.Context(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

func (a *API) handleTopItems(c *gin.Context) {
	limit := parsePositiveLimit(c.Query("limit"), 10, 25)
	resp, err := a.service.TopItems(c.Request.Context(), c.Query("start_date"), c.Query("end_date"), limit)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleSalarySummary(c *gin.Context) {
	summary, err := a.service.SalarySummary(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleExportBills accepts range=all|current-month|previous-month|year.
// A bare year=YYYY implies range=year.
func (a *API) handleExportBills(c *gin.Context) {
	kind := strings.TrimSpace(c.Query("range"))
	year := 0
	if raw := strings.TrimSpace(c.Query("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			a.fail(c, store.Invalid("year must be a number"))
			return
		}
		year = parsed
		if kind == "" {
			kind = service.ReportYear
		}
	}

	report, err := a.service.BillReport(c.Request.Context(), kind, year)
	if err != nil {
		a.fail(c, err)
		return
	}
	f, err := export.Bills(report, a.location)
	if err != nil {
		a.fail(c, fmt.Errorf("build bill export: %w", err))
		return
	}
	a.writeWorkbook(c, report.Filename, f)
}

func (a *API) handleExportInventory(c *gin.Context) {
	rows, err := a.service.InventoryReport(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	f, err := export.InventoryPerformance(rows)
	if err != nil {
		a.fail(c, fmt.Errorf("build inventory export: %w", err))
		return
	}
	filename := fmt.Sprintf("inventory-performance-%s.xlsx", time.Now().In(a.location).Format("2006-01-02"))
	a.writeWorkbook(c, filename, f)
}

func (a *API) writeWorkbook(c *gin.Context, filename string, f *excelize.File) {
	defer func() { _ = f.Close() }()

	c.Header("Content-Type", export.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		a.logger.Error("write workbook", zap.String("filename", filename), zap.Error(err))
	}
}
