package author

import "github.com/ether/collabpads-go/lib/models/db"

func MapFromDB(authorDB db.AuthorDB) Author {
	connections := make([]Connection, 0, len(authorDB.Connections))
	for _, pair := range authorDB.Connections {
		connections = append(connections, Connection{
			ConnectionId: pair.ConnectionID,
			SessionId:    pair.SessionID,
		})
	}
	return Author{
		Id:          authorDB.ID,
		Name:        authorDB.Name,
		Connections: connections,
		CreatedAt:   authorDB.CreatedAt,
	}
}
