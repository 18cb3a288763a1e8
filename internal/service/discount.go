package service

import (
	"context"
	"fmt"

	"itemledger/internal/model"
	"itemledger/internal/repository"
	"itemledger/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PricedItem is an item with a tier discount applied to its price.
type PricedItem struct {
	Item            model.Item         `json:"item"`
	Tier            model.DiscountTier `json:"tier"`
	DiscountedPrice decimal.Decimal    `json:"discounted_price"`
}

// DiscountService locates items and prices them for a customer tier.
type DiscountService struct {
	catalog repository.CatalogRepository
	log     *logrus.Logger
}

// NewDiscountService creates a discount lookup service.
func NewDiscountService(catalog repository.CatalogRepository, log *logrus.Logger) *DiscountService {
	return &DiscountService{catalog: catalog, log: log}
}

// FindItemByID prices a single item for the customer rating.
func (s *DiscountService) FindItemByID(ctx context.Context, itemID int64, rating string) (*PricedItem, error) {
	tier := model.TierFromRating(rating)
	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	priced := priceItem(*item, tier)
	return &priced, nil
}

// FindItems locates items by name for a customer rating, preferring shops
// in the given location. Shop-scoped lookups fan out concurrently and the
// results are joined back in shop-scan order, not completion order. When the
// location has no shops, or none of its shops carries the item, the search
// falls back to a catalog-wide lookup by name. NOT_FOUND is returned only
// when both paths come up empty.
func (s *DiscountService) FindItems(ctx context.Context, name, location, rating string) ([]PricedItem, error) {
	tier := model.TierFromRating(rating)

	var shops []model.Shop
	if location != "" {
		var err error
		if shops, err = s.catalog.FindShopsByLocation(ctx, location); err != nil {
			return nil, err
		}
	}
	if len(shops) == 0 {
		return s.findByName(ctx, name, tier)
	}

	results := make([]*PricedItem, len(shops))
	g, gctx := errgroup.WithContext(ctx)
	for i, shop := range shops {
		i, shop := i, shop
		g.Go(func() error {
			item, err := s.catalog.GetItemByShopAndName(gctx, shop.ID, name)
			if err != nil {
				if apperror.IsCode(err, apperror.CodeNotFound) {
					return nil // this shop doesn't carry the item
				}
				return err
			}
			priced := priceItem(*item, tier)
			results[i] = &priced
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	priced := make([]PricedItem, 0, len(results))
	for _, r := range results {
		if r != nil {
			priced = append(priced, *r)
		}
	}
	if len(priced) == 0 {
		s.log.WithFields(logrus.Fields{
			"name":     name,
			"location": location,
		}).Debug("no shop-scoped match, falling back to catalog-wide search")
		return s.findByName(ctx, name, tier)
	}
	return priced, nil
}

// findByName prices every item matching the name across all shops.
func (s *DiscountService) findByName(ctx context.Context, name string, tier model.DiscountTier) ([]PricedItem, error) {
	items, err := s.catalog.FindItemsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperror.NotFound(fmt.Sprintf("no item named %q in any shop", name))
	}

	priced := make([]PricedItem, 0, len(items))
	for _, item := range items {
		priced = append(priced, priceItem(item, tier))
	}
	return priced, nil
}

func priceItem(item model.Item, tier model.DiscountTier) PricedItem {
	return PricedItem{
		Item:            item,
		Tier:            tier,
		DiscountedPrice: tier.Apply(item.Price),
	}
}
