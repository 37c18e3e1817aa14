package httptransport

import (
	"time"

	accountmodels "monedero/internal/account/models"
	cardmodels "monedero/internal/card/models"
	usermodels "monedero/internal/user/models"
)

// userView is the wire form of the user aggregate. The version token rides
// along so the caller can present it on the next mutation.
type userView struct {
	ID       string  `json:"id"`
	Phone    string  `json:"phone"`
	Email    *string `json:"email,omitempty"`
	Stage    string  `json:"stage"`
	ClientID *string `json:"client_id,omitempty"`
	Version  string  `json:"version"`
}

func toUserView(user *usermodels.User) userView {
	v := userView{
		ID:      user.ID.String(),
		Phone:   user.Phone(),
		Email:   user.Email,
		Stage:   user.Stage.String(),
		Version: user.Audit.Version.Encode(),
	}
	if user.ClientID != nil {
		clientID := user.ClientID.String()
		v.ClientID = &clientID
	}
	return v
}

type cardView struct {
	ID              string  `json:"id"`
	AccountID       string  `json:"account_id"`
	MaskedNumber    string  `json:"masked_number"`
	Type            string  `json:"type"`
	State           string  `json:"state"`
	ExpiresOn       string  `json:"expires_on"`
	TempBlocked     bool    `json:"temp_blocked"`
	DailyLimit      string  `json:"daily_limit"`
	OnlinePurchases bool    `json:"online_purchases"`
	ATMWithdrawal   bool    `json:"atm_withdrawal"`
	ShipmentState   *string `json:"shipment_state,omitempty"`
	TrackingNumber  *string `json:"tracking_number,omitempty"`
	Version         string  `json:"version"`
}

func toCardView(card *cardmodels.Card) cardView {
	v := cardView{
		ID:              card.ID.String(),
		AccountID:       card.AccountID.String(),
		MaskedNumber:    card.MaskedNumber,
		Type:            card.Type.String(),
		State:           card.State.String(),
		ExpiresOn:       card.ExpiresOn.Format(time.DateOnly),
		TempBlocked:     card.TempBlocked,
		DailyLimit:      card.DailyLimit.String(),
		OnlinePurchases: card.OnlinePurchases,
		ATMWithdrawal:   card.ATMWithdrawal,
		TrackingNumber:  card.TrackingNumber,
		Version:         card.Audit.Version.Encode(),
	}
	if card.ShipmentState != nil {
		shipment := string(*card.ShipmentState)
		v.ShipmentState = &shipment
	}
	return v
}

func toCardViews(cards []*cardmodels.Card) []cardView {
	out := make([]cardView, 0, len(cards))
	for _, card := range cards {
		out = append(out, toCardView(card))
	}
	return out
}

type accountView struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	State    string `json:"state"`
	Version  string `json:"version"`
}

func toAccountView(account *accountmodels.Account) accountView {
	return accountView{
		ID:       account.ID.String(),
		UserID:   account.UserID.String(),
		Currency: account.Currency,
		Balance:  account.Balance.String(),
		State:    account.State.String(),
		Version:  account.Audit.Version.Encode(),
	}
}

func toAccountViews(accounts []*accountmodels.Account) []accountView {
	out := make([]accountView, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, toAccountView(account))
	}
	return out
}
