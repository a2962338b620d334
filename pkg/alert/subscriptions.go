package alert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ubtk/marctk/pkg/kvmap"
)

// Key layout in the subscription map:
//
//	user:<id>          JSON-encoded User
//	sub:<id>:<serial>  max last modification time ("YYYY-MM-DD HH:MM:SS")
//
// <serial> is a serial control number or a "bundle:<name>" reference.
const (
	userKeyPrefix         = "user:"
	subscriptionKeyPrefix = "sub:"
)

// User holds the attributes needed to address a subscriber.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	UserType  string `json:"user_type"`
}

// Subscription is one user's subscription to a serial or bundle.
type Subscription struct {
	UserID                  string
	SerialControlNumber     string
	MaxLastModificationTime string
}

func subscriptionKey(userID, serial string) string {
	return subscriptionKeyPrefix + userID + ":" + serial
}

// SaveUser stores a user's attributes.
func SaveUser(store *kvmap.Store, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return store.Set(userKeyPrefix+user.ID, string(data))
}

// LoadUser fetches a user's attributes.
func LoadUser(store *kvmap.Store, userID string) (User, error) {
	data, found, err := store.Get(userKeyPrefix + userID)
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, fmt.Errorf("found no user attributes for id %q", userID)
	}
	var user User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return User{}, fmt.Errorf("corrupt user record for id %q: %w", userID, err)
	}
	return user, nil
}

// EachUser visits every stored user whose type matches userType.
func EachUser(store *kvmap.Store, userType string, visit func(User) error) error {
	return store.EachPrefix(userKeyPrefix, func(_, value string) error {
		var user User
		if err := json.Unmarshal([]byte(value), &user); err != nil {
			return fmt.Errorf("corrupt user record: %w", err)
		}
		if user.UserType != userType {
			return nil
		}
		return visit(user)
	})
}

// Subscriptions returns all subscriptions of one user.
func Subscriptions(store *kvmap.Store, userID string) ([]Subscription, error) {
	prefix := subscriptionKeyPrefix + userID + ":"
	var subs []Subscription
	err := store.EachPrefix(prefix, func(key, value string) error {
		subs = append(subs, Subscription{
			UserID:                  userID,
			SerialControlNumber:     strings.TrimPrefix(key, prefix),
			MaxLastModificationTime: value,
		})
		return nil
	})
	return subs, err
}

// SaveSubscription stores one subscription.
func SaveSubscription(store *kvmap.Store, sub Subscription) error {
	return store.Set(subscriptionKey(sub.UserID, sub.SerialControlNumber), sub.MaxLastModificationTime)
}

// PatchSubscriptions rewrites subscriptions after print/online merges. For
// every dropped→surviving PPN pair: a subscription only to the dropped PPN is
// re-keyed; subscriptions to both collapse into one carrying the smaller
// last-modification time, so no issue between the two timestamps is lost.
func PatchSubscriptions(store *kvmap.Store, droppedToSurviving map[string]string) (int, error) {
	patched := 0
	for dropped, surviving := range droppedToSurviving {
		type rekey struct {
			userID string
			value  string
		}
		var work []rekey
		err := store.EachPrefix(subscriptionKeyPrefix, func(key, value string) error {
			parts := strings.SplitN(strings.TrimPrefix(key, subscriptionKeyPrefix), ":", 2)
			if len(parts) == 2 && parts[1] == dropped {
				work = append(work, rekey{userID: parts[0], value: value})
			}
			return nil
		})
		if err != nil {
			return patched, err
		}

		for _, item := range work {
			survivingKey := subscriptionKey(item.userID, surviving)
			existing, found, err := store.Get(survivingKey)
			if err != nil {
				return patched, err
			}
			newValue := item.value
			if found && existing < newValue {
				newValue = existing
			}
			if err := store.Set(survivingKey, newValue); err != nil {
				return patched, err
			}
			if err := store.Delete(subscriptionKey(item.userID, dropped)); err != nil {
				return patched, err
			}
			patched++
		}
	}
	return patched, nil
}
