package economy

// Item IDs
const (
	ItemDuctTape = "duct-tape"
	ItemHandheld = "handheld"
	ItemBow      = "bow"
)

// Reward IDs
const (
	RewardLogin     = "login"
	RewardFirstChat = "first-chat"
	RewardPet       = "pet"
	RewardNap       = "nap"
)

// Reward amounts
const (
	LoginBonus     = 50
	FirstChatBonus = 10
	PetReward      = 1
	NapReward      = 2
)

// Item is something Eilo's owner can buy.
type Item struct {
	ID          string
	Name        string
	Price       int
	Description string
}

// Catalog returns every item for sale.
func Catalog() []Item {
	return []Item{
		{ID: ItemBow, Name: "cute bow", Price: 15, Description: "A pink bow for Eilo's antenna 🎀"},
		{ID: ItemDuctTape, Name: "roll of duct tape", Price: 25, Description: "Muffles Eilo's voice"},
		{ID: ItemHandheld, Name: "handheld console", Price: 60, Description: "Eilo plays games when bored"},
	}
}

// Lookup finds an item by ID.
func Lookup(id string) (Item, bool) {
	for _, it := range Catalog() {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Refusals are spoken when Eilo can't afford something.
func Refusals() []string {
	return []string{
		"Aww, we don't have enough coins for that yet! 🧸",
		"Hmm, my piggy bank says not yet! ✨",
		"Let's save up a little more first! 🎀",
	}
}
