package land

import (
	"fmt"
	"sort"
)

// Sale is a claim taken off the active set and offered at a fixed price.
// The stored claim snapshot has blank owner fields; the trust set is
// preserved and travels with the land to its buyer.
type Sale struct {
	Claim      *Claim
	Price      int
	SellerID   string
	SellerName string
}

type PurchaseReceipt struct {
	Name       string
	Price      int
	SellerID   string
	SellerName string
}

// ListForSale atomically moves the requester's named claim from the active
// set into the sale ledger. The listed rect keeps occupying the namespace
// and the for-sale index, so nothing can claim over it while listed.
func (r *Registry) ListForSale(requesterID, name string, price int) error {
	key := claimKey(name)
	if price <= 0 {
		return reject(EBadRequest, "price must be a positive integer")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[key]
	if !ok {
		return reject(ENotFound, "no claim named '"+name+"'")
	}
	if c.OwnerID != requesterID {
		return reject(ENoPermission, "not the claim owner")
	}

	snapshot := c.Clone()
	sellerID, sellerName := snapshot.OwnerID, snapshot.OwnerName
	snapshot.OwnerID = ""
	snapshot.OwnerName = ""

	delete(r.claims, key)
	r.active.remove(c)
	r.sales[key] = &Sale{Claim: snapshot, Price: price, SellerID: sellerID, SellerName: sellerName}
	r.listed.insert(snapshot)
	r.persistLocked()
	r.auditLocked(requesterID, "SALE_LIST", [2]int{snapshot.CenterX(), snapshot.CenterZ()}, "", map[string]any{
		"land_name": snapshot.Name,
		"price":     price,
	})
	return nil
}

// Purchase resolves a listing: debit buyer, credit seller (skipped when the
// buyer is the seller), reinsert the claim under the buyer. Funds and
// ownership move as one transaction; any failure after the debit refunds
// the buyer before returning.
func (r *Registry) Purchase(buyerID, buyerName, name string) (*PurchaseReceipt, error) {
	key := claimKey(name)
	var notice func()

	r.mu.Lock()
	sale, ok := r.sales[key]
	if !ok {
		r.mu.Unlock()
		return nil, reject(ENotListed, "no land named '"+name+"' is for sale")
	}
	if r.economy == nil {
		r.mu.Unlock()
		return nil, reject(EBadRequest, "no economy available")
	}
	selfPurchase := buyerID == sale.SellerID
	if !selfPurchase {
		if r.economy.Balance(buyerID) < sale.Price {
			r.mu.Unlock()
			return nil, reject(ENoFunds, fmt.Sprintf("need %d", sale.Price))
		}
		if err := r.economy.Debit(buyerID, sale.Price); err != nil {
			r.mu.Unlock()
			return nil, reject(ENoFunds, err.Error())
		}
	}

	claim := sale.Claim
	if err := r.restoreClaimLocked(claim, buyerID, buyerName, key); err != nil {
		if !selfPurchase {
			r.economy.Credit(buyerID, sale.Price)
		}
		r.mu.Unlock()
		return nil, err
	}
	if !selfPurchase {
		r.economy.Credit(sale.SellerID, sale.Price)
	}
	delete(r.sales, key)
	r.names.Put(buyerID, buyerName)
	r.persistLocked()
	r.auditLocked(buyerID, "SALE_BUY", [2]int{claim.CenterX(), claim.CenterZ()}, "", map[string]any{
		"land_name": claim.Name,
		"price":     sale.Price,
		"seller":    sale.SellerID,
	})
	receipt := &PurchaseReceipt{Name: claim.Name, Price: sale.Price, SellerID: sale.SellerID, SellerName: sale.SellerName}
	if !selfPurchase {
		seller, landName, price := sale.SellerID, claim.Name, sale.Price
		notice = func() {
			r.notify(seller, fmt.Sprintf("[IanClaims] Your land '%s' sold for %d", landName, price))
		}
	}
	r.mu.Unlock()

	if notice != nil {
		notice()
	}
	return receipt, nil
}

// CancelSale pulls a listing back into the active set under the seller.
// Seller or elevated privilege only.
func (r *Registry) CancelSale(requesterID, name string) error {
	key := claimKey(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	sale, ok := r.sales[key]
	if !ok {
		return reject(ENotListed, "no land named '"+name+"' is for sale")
	}
	if sale.SellerID != requesterID {
		if r.dir == nil || !r.dir.HasElevatedPrivilege(requesterID) {
			return reject(ENoPermission, "not the seller")
		}
	}
	if err := r.restoreClaimLocked(sale.Claim, sale.SellerID, sale.SellerName, key); err != nil {
		return err
	}
	delete(r.sales, key)
	r.persistLocked()
	r.auditLocked(requesterID, "SALE_CANCEL", [2]int{sale.Claim.CenterX(), sale.Claim.CenterZ()}, "", map[string]any{
		"land_name": sale.Claim.Name,
	})
	return nil
}

// restoreClaimLocked moves a listed claim back into the active set under a
// new owner. The overlap check cannot fire while the ledger invariant
// holds; it keeps the reinsert honest if a future change breaks it.
func (r *Registry) restoreClaimLocked(claim *Claim, ownerID, ownerName, key string) error {
	r.listed.remove(claim)
	if r.active.overlaps(claim.Rect) {
		r.listed.insert(claim)
		return reject(EAreaOccupied, "listed land overlaps an active claim")
	}
	claim.TransferOwnership(ownerID, ownerName)
	r.claims[key] = claim
	r.active.insert(claim)
	return nil
}

// SaleByName returns a detached view of the named listing.
func (r *Registry) SaleByName(name string) (*Sale, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sales[claimKey(name)]
	if !ok {
		return nil, false
	}
	return &Sale{Claim: s.Claim.Clone(), Price: s.Price, SellerID: s.SellerID, SellerName: s.SellerName}, true
}

// SalesList returns every listing sorted by name.
func (r *Registry) SalesList() []*Sale {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Sale, 0, len(r.sales))
	for _, s := range r.sales {
		out = append(out, &Sale{Claim: s.Claim.Clone(), Price: s.Price, SellerID: s.SellerID, SellerName: s.SellerName})
	}
	sort.Slice(out, func(i, j int) bool {
		return claimKey(out[i].Claim.Name) < claimKey(out[j].Claim.Name)
	})
	return out
}
