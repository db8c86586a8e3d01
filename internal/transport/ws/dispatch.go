package ws

import (
	"github.com/Ianatiant/ianclaims/internal/protocol"
	"github.com/Ianatiant/ianclaims/internal/sim/land"
)

func (s *Server) dispatch(playerID string, cmd protocol.CmdMsg) protocol.ResultMsg {
	res := protocol.ResultMsg{Type: protocol.TypeResult, ID: cmd.ID}

	fail := func(err error) protocol.ResultMsg {
		res.OK = false
		if rej, ok := err.(*land.Reject); ok {
			res.Code = rej.Code
			res.Msg = rej.Msg
		} else {
			res.Code = land.EBadRequest
			res.Msg = err.Error()
		}
		return res
	}

	switch cmd.Op {
	case protocol.OpCreate:
		x, z, ok := s.hub.Position(playerID)
		if !ok {
			res.Code = land.EBadRequest
			res.Msg = "no known position; send MOVE first"
			return res
		}
		name, _ := s.hub.DisplayName(playerID)
		c, err := s.reg.CreateClaim(playerID, name, cmd.Name, x, z, cmd.Size)
		if err != nil {
			return fail(err)
		}
		res.OK = true
		res.Claim = s.claimInfo(c)

	case protocol.OpRemove:
		if err := s.reg.RemoveClaim(playerID, cmd.Name); err != nil {
			return fail(err)
		}
		res.OK = true

	case protocol.OpRemoveAll:
		n, err := s.reg.RemoveAllClaims(playerID, cmd.Target)
		if err != nil {
			return fail(err)
		}
		res.OK = true
		res.Removed = n

	case protocol.OpTransfer:
		targetName := cmd.TargetName
		if targetName == "" {
			targetName, _ = s.hub.DisplayName(cmd.Target)
		}
		if err := s.reg.TransferClaim(playerID, cmd.Name, cmd.Target, targetName); err != nil {
			return fail(err)
		}
		res.OK = true

	case protocol.OpTrust, protocol.OpUntrust:
		var changed bool
		var err error
		if cmd.Op == protocol.OpTrust {
			changed, err = s.reg.AddTrusted(playerID, cmd.Name, cmd.Target)
		} else {
			changed, err = s.reg.RemoveTrusted(playerID, cmd.Name, cmd.Target)
		}
		if err != nil {
			return fail(err)
		}
		res.OK = true
		if !changed {
			res.Msg = "no change"
		}

	case protocol.OpInfo:
		c, ok := s.reg.ClaimByName(cmd.Name)
		if !ok {
			res.Code = land.ENotFound
			res.Msg = "no claim named '" + cmd.Name + "'"
			return res
		}
		res.OK = true
		res.Claim = s.claimInfo(c)

	case protocol.OpInfoAt:
		c, ok := s.reg.ClaimAt(cmd.X, cmd.Z)
		if !ok {
			res.Code = land.ENotFound
			res.Msg = "no claim at that position"
			return res
		}
		res.OK = true
		res.Claim = s.claimInfo(c)

	case protocol.OpList:
		owner := cmd.Target
		if owner == "" {
			owner = playerID
		}
		if owner != playerID && !s.hub.HasElevatedPrivilege(playerID) {
			res.Code = land.ENoPermission
			res.Msg = "elevated privilege required"
			return res
		}
		res.OK = true
		for _, c := range s.reg.ClaimsByOwner(owner) {
			res.Claims = append(res.Claims, *s.claimInfo(c))
		}

	case protocol.OpSell:
		if err := s.reg.ListForSale(playerID, cmd.Name, cmd.Price); err != nil {
			return fail(err)
		}
		res.OK = true

	case protocol.OpBuy:
		name, _ := s.hub.DisplayName(playerID)
		if _, err := s.reg.Purchase(playerID, name, cmd.Name); err != nil {
			return fail(err)
		}
		res.OK = true

	case protocol.OpCancelSale:
		if err := s.reg.CancelSale(playerID, cmd.Name); err != nil {
			return fail(err)
		}
		res.OK = true

	case protocol.OpSales:
		res.OK = true
		for _, sale := range s.reg.SalesList() {
			res.Sales = append(res.Sales, protocol.SaleInfo{
				LandName:   sale.Claim.Name,
				SellerName: sale.SellerName,
				Price:      sale.Price,
				Size:       sale.Claim.Size,
			})
		}

	case protocol.OpModifyCheck:
		allowed := s.reg.CanModifyAt(playerID, cmd.X, cmd.Z)
		res.OK = true
		res.Allowed = &allowed

	default:
		res.Code = land.EBadRequest
		res.Msg = "unknown op '" + cmd.Op + "'"
	}
	return res
}

func (s *Server) claimInfo(c *land.Claim) *protocol.ClaimInfo {
	return &protocol.ClaimInfo{
		LandName:  c.Name,
		OwnerName: s.reg.OwnerNameOf(c),
		Size:      c.Size,
		X1:        c.Rect.X1,
		Z1:        c.Rect.Z1,
		X2:        c.Rect.X2,
		Z2:        c.Rect.Z2,
		Trusted:   len(c.Trusted),
	}
}
