package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

const paymentAttempts = 16

// CreateBill writes the bill, its lines, every guarded stock deduction and
// the credit entry in one transaction.
func (s *Store) CreateBill(ctx context.Context, unit store.BillUnit) (*domain.Bill, error) {
	if len(unit.Bill.Items) == 0 {
		return nil, store.Invalid("bill has no items")
	}

	bill := unit.Bill
	bill.Items = append([]domain.BillLineItem(nil), unit.Bill.Items...)
	bill.ItemIDs = make([]string, 0, len(bill.Items))
	lines := make([]interface{}, 0, len(bill.Items))
	for i := range bill.Items {
		bill.Items[i].BillID = bill.ID
		bill.ItemIDs = append(bill.ItemIDs, bill.Items[i].ID)
		lines = append(lines, bill.Items[i])
	}

	itemIDs := make([]string, 0, len(unit.Deductions))
	for itemID := range unit.Deductions {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)

	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		for _, itemID := range itemIDs {
			qty := unit.Deductions[itemID]
			res, err := s.coll(itemsCollection).UpdateOne(sc,
				bson.M{"_id": itemID, "shop_id": bill.ShopID, "total_stock_units": bson.M{"$gte": qty}},
				bson.M{"$inc": bson.M{"total_stock_units": -qty}, "$set": bson.M{"updated_at": bill.CreatedAt}})
			if err != nil {
				return err
			}
			if res.MatchedCount == 0 {
				return store.ErrInsufficientStock
			}
		}

		if _, err := s.coll(billsCollection).InsertOne(sc, bill); err != nil {
			return err
		}
		if _, err := s.coll(lineItemsCollection).InsertMany(sc, lines); err != nil {
			return err
		}
		if unit.Credit != nil {
			credit := *unit.Credit
			if credit.Payments == nil {
				credit.Payments = []domain.CreditPayment{}
			}
			if _, err := s.coll(creditsCollection).InsertOne(sc, credit); err != nil {
				return mapDuplicateKey(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func (s *Store) GetBill(ctx context.Context, shopID string, billID string) (*domain.Bill, error) {
	var bill domain.Bill
	if err := s.coll(billsCollection).FindOne(ctx, bson.M{"_id": billID, "shop_id": shopID}).Decode(&bill); err != nil {
		return nil, notFound(err, "bill")
	}
	bills := []domain.Bill{bill}
	if err := s.attachLines(ctx, bills); err != nil {
		return nil, err
	}
	return &bills[0], nil
}

func (s *Store) ListBills(ctx context.Context, filter store.BillFilter) ([]domain.Bill, error) {
	query := bson.M{"shop_id": filter.ShopID}
	createdRange(query, filter.From, filter.To)

	cursor, err := s.coll(billsCollection).Find(ctx, query, findOptions(bson.D{{Key: "created_at", Value: -1}}, filter.Limit))
	if err != nil {
		return nil, err
	}
	bills := make([]domain.Bill, 0, 32)
	if err := cursor.All(ctx, &bills); err != nil {
		return nil, err
	}
	if err := s.attachLines(ctx, bills); err != nil {
		return nil, err
	}
	return bills, nil
}

// attachLines fills Items in the order the bill recorded them.
func (s *Store) attachLines(ctx context.Context, bills []domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	ids := make([]string, 0, len(bills))
	for _, bill := range bills {
		ids = append(ids, bill.ID)
	}

	cursor, err := s.coll(lineItemsCollection).Find(ctx, bson.M{"bill_id": bson.M{"$in": ids}})
	if err != nil {
		return err
	}
	var lines []domain.BillLineItem
	if err := cursor.All(ctx, &lines); err != nil {
		return err
	}
	byID := make(map[string]domain.BillLineItem, len(lines))
	for _, line := range lines {
		byID[line.ID] = line
	}

	for i := range bills {
		bills[i].Items = make([]domain.BillLineItem, 0, len(bills[i].ItemIDs))
		for _, id := range bills[i].ItemIDs {
			if line, ok := byID[id]; ok {
				bills[i].Items = append(bills[i].Items, line)
			}
		}
	}
	return nil
}

// PayCredit applies a payment with a compare-and-set on the entry version.
// A lost race rereads the entry and tries again.
func (s *Store) PayCredit(ctx context.Context, shopID string, creditID string, payment domain.CreditPayment) (*domain.CreditEntry, error) {
	for attempt := 0; attempt < paymentAttempts; attempt++ {
		var entry domain.CreditEntry
		err := s.coll(creditsCollection).FindOne(ctx, bson.M{"_id": creditID, "shop_id": shopID}).Decode(&entry)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrCreditNotPayable
		}
		if err != nil {
			return nil, err
		}
		if entry.Status != domain.CreditPending {
			return nil, store.ErrCreditNotPayable
		}
		if payment.Amount > entry.PendingAmount {
			return nil, store.Invalid("payment amount %.2f exceeds pending amount %.2f", payment.Amount, entry.PendingAmount)
		}

		pending := money.Sum(entry.PendingAmount, -payment.Amount)
		status := domain.CreditPending
		if pending <= 0 {
			pending = 0
			status = domain.CreditSettled
		}
		settled := money.Sum(entry.SettledAmount, payment.Amount)

		res, err := s.coll(creditsCollection).UpdateOne(ctx,
			bson.M{"_id": creditID, "shop_id": shopID, "status": domain.CreditPending, "version": entry.Version},
			bson.M{
				"$set": bson.M{
					"pending_amount": pending,
					"settled_amount": settled,
					"status":         status,
					"updated_at":     payment.CreatedAt,
				},
				"$inc":  bson.M{"version": 1},
				"$push": bson.M{"payments": payment},
			})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			continue
		}

		entry.PendingAmount = pending
		entry.SettledAmount = settled
		entry.Status = status
		entry.UpdatedAt = payment.CreatedAt
		entry.Version++
		entry.Payments = append(entry.Payments, payment)
		return &entry, nil
	}
	return nil, fmt.Errorf("credit entry %s kept changing: %w", creditID, store.ErrConflict)
}

func (s *Store) ListCredits(ctx context.Context, filter store.CreditFilter) ([]domain.CreditEntry, error) {
	query := bson.M{"shop_id": filter.ShopID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.CustomerMobile != "" {
		query["customer_mobile"] = filter.CustomerMobile
	}

	cursor, err := s.coll(creditsCollection).Find(ctx, query, findOptions(bson.D{{Key: "created_at", Value: -1}}, filter.Limit))
	if err != nil {
		return nil, err
	}
	entries := make([]domain.CreditEntry, 0, 16)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Payments == nil {
			entries[i].Payments = []domain.CreditPayment{}
		}
	}
	return entries, nil
}
