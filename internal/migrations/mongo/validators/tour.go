package validators

import "go.mongodb.org/mongo-driver/bson"

var TourValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"guide_id",
			"title",
			"slug",
			"description",
			"location",
			"tour_fee",
			"max_group_size",
			"max_duration_hours",
			"category",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"guide_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 120,
			},

			"slug": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 140,
			},

			"description": bson.M{
				"bsonType":  "string",
				"minLength": 10,
				"maxLength": 5000,
			},

			"location": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 120,
			},

			"tour_fee": bson.M{
				"bsonType":         "double",
				"exclusiveMinimum": true,
				"minimum":          0,
			},

			"max_group_size": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  200,
			},

			"max_duration_hours": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  336,
			},

			"category": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 60,
			},

			"images": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "string",
				},
				"maxItems": 10,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"ACTIVE",
					"INACTIVE",
				},
			},

			"rating": bson.M{
				"bsonType": "double",
				"minimum":  0,
				"maximum":  5,
			},

			"rating_count": bson.M{
				"bsonType": "int",
				"minimum":  0,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
