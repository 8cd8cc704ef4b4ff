package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

func storedItem(item domain.InventoryItem) domain.InventoryItem {
	stored := item
	stored.LabourDetails = make([]domain.LabourDetail, 0, len(item.LabourDetails))
	for _, d := range item.LabourDetails {
		stored.LabourDetails = append(stored.LabourDetails, domain.LabourDetail{EmployeeID: d.EmployeeID, LabourCost: d.LabourCost})
	}
	return stored
}

func withLabour(item domain.InventoryItem) domain.InventoryItem {
	if item.LabourDetails == nil {
		item.LabourDetails = []domain.LabourDetail{}
	}
	return item
}

// CreateInventoryItem bumps a counter on the shop document inside the
// transaction, so concurrent creates conflict and the count stays exact.
func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem, accrual store.LabourAccrual) (*domain.InventoryItem, error) {
	stored := storedItem(item)
	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := s.coll(shopsCollection).UpdateOne(sc, bson.M{"_id": item.ShopID}, bson.M{"$inc": bson.M{"item_writes": 1}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return store.NotFound("shop")
		}

		count, err := s.coll(itemsCollection).CountDocuments(sc, bson.M{"shop_id": item.ShopID})
		if err != nil {
			return err
		}
		if count >= store.MaxInventoryItemsPerShop {
			return store.ErrLimitReached
		}
		if _, err := s.coll(itemsCollection).InsertOne(sc, stored); err != nil {
			return err
		}
		return s.applyAccrual(sc, item.ShopID, accrual)
	})
	if err != nil {
		return nil, err
	}
	created := withLabour(stored)
	return &created, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, shopID string, itemID string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	if err := s.coll(itemsCollection).FindOne(ctx, bson.M{"_id": itemID, "shop_id": shopID}).Decode(&item); err != nil {
		return nil, notFound(err, "inventory item")
	}
	item = withLabour(item)
	return &item, nil
}

func (s *Store) ListInventoryItems(ctx context.Context, shopID string) ([]domain.InventoryItem, error) {
	cursor, err := s.coll(itemsCollection).Find(ctx, bson.M{"shop_id": shopID},
		findOptions(bson.D{{Key: "created_at", Value: -1}, {Key: "item_name", Value: 1}}, 0))
	if err != nil {
		return nil, err
	}
	items := make([]domain.InventoryItem, 0, store.MaxInventoryItemsPerShop)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = withLabour(items[i])
	}
	return items, nil
}

// lockItem bumps the item's revision inside the session and returns the row.
// The write makes any concurrent bill or edit on the same document conflict
// until this transaction ends, and the driver retries the loser.
func (s *Store) lockItem(sc mongo.SessionContext, shopID string, itemID string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.coll(itemsCollection).FindOneAndUpdate(sc,
		bson.M{"_id": itemID, "shop_id": shopID},
		bson.M{"$inc": bson.M{"revision": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&item)
	if err != nil {
		return nil, notFound(err, "inventory item")
	}
	item = withLabour(item)
	return &item, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, shopID string, itemID string, edit store.ItemEdit) (*domain.InventoryItem, error) {
	var updated domain.InventoryItem
	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		current, err := s.lockItem(sc, shopID, itemID)
		if err != nil {
			return err
		}
		item, accrual, err := edit(*current)
		if err != nil {
			return err
		}
		stored := storedItem(item)
		err = s.coll(itemsCollection).FindOneAndUpdate(sc, bson.M{"_id": current.ID, "shop_id": shopID}, bson.M{
			"$set": bson.M{
				"item_name":                    stored.ItemName,
				"total_stock_units":            stored.TotalStockUnits,
				"material_cost":                stored.MaterialCost,
				"fuel_cost":                    stored.FuelCost,
				"labour_details":               stored.LabourDetails,
				"cost_of_labour":               stored.CostOfLabour,
				"total_cost":                   stored.TotalCost,
				"cost_per_unit":                stored.CostPerUnit,
				"profit_per_unit":              stored.ProfitPerUnit,
				"final_selling_price_per_unit": stored.FinalSellingPricePerUnit,
				"updated_at":                   stored.UpdatedAt,
			},
		}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
		if err != nil {
			return notFound(err, "inventory item")
		}
		return s.applyAccrual(sc, shopID, accrual)
	})
	if err != nil {
		return nil, err
	}
	updated = withLabour(updated)
	return &updated, nil
}

func (s *Store) DeleteInventoryItem(ctx context.Context, shopID string, itemID string, remove store.ItemRemoval) error {
	return s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		current, err := s.lockItem(sc, shopID, itemID)
		if err != nil {
			return err
		}
		if _, err := s.coll(itemsCollection).DeleteOne(sc, bson.M{"_id": current.ID, "shop_id": shopID}); err != nil {
			return err
		}
		return s.applyAccrual(sc, shopID, remove(*current))
	})
}
